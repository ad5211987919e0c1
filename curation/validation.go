// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package curation

import (
	"errors"
	"fmt"
	"strings"
)

// Review decisions.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// validDecisions holds the decisions a reviewer can take on a guess.
var validDecisions = map[string]bool{
	DecisionAccept: true,
	DecisionReject: true,
}

// validTiers holds the guess tiers a review can target.
var validTiers = map[int]bool{
	1: true,
	2: true,
}

const (
	maxReviewerLen = 100
	maxNotesLen    = 1000
)

// validateReview checks that a review can be applied.
func validateReview(rv *Review) error {
	if rv == nil {
		return errors.New("review can't be nil")
	}

	if strings.TrimSpace(rv.DatasetID) == "" {
		return errors.New("dataset id can't be empty")
	}

	if rv.Index < 0 {
		return fmt.Errorf("invalid record index: %d", rv.Index)
	}

	if !validTiers[rv.Tier] {
		return fmt.Errorf("invalid guess tier: %d", rv.Tier)
	}

	if !validDecisions[rv.Decision] {
		return fmt.Errorf("invalid decision: %q", rv.Decision)
	}

	if strings.TrimSpace(rv.Reviewer) == "" {
		return errors.New("reviewer can't be empty")
	}

	if len(rv.Reviewer) > maxReviewerLen {
		return fmt.Errorf("reviewer too long (max %d characters)", maxReviewerLen)
	}

	if len(rv.Notes) > maxNotesLen {
		return fmt.Errorf("notes too long (max %d characters)", maxNotesLen)
	}

	return nil
}

// sanitizeText trims s and cuts it to max bytes.
func sanitizeText(s string, max int) string {
	s = strings.TrimSpace(s)

	if len(s) > max {
		s = s[:max]
	}

	return s
}
