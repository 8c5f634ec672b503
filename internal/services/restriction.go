package services

import (
	"time"

	"eventpass/internal/status"
	"eventpass/models"
)

// AgeAllowed reports whether an age passes an event's age policy.
// An unknown age (negative) only passes unrestricted events; a buyer who
// cannot prove their age is not admitted to a restricted one.
func AgeAllowed(age int, policy string) bool {
	switch policy {
	case "", models.AgeNoRestriction:
		return true
	case models.AgeUnder18:
		return age >= 0 && age < 18
	case models.Age18To29:
		return age >= 18 && age <= 29
	case models.Age30To39:
		return age >= 30 && age <= 39
	case models.Age40AndAbove:
		return age >= 40
	default:
		return false
	}
}

// GenderAllowed reports whether a gender passes an event's gender policy.
func GenderAllowed(gender, policy string) bool {
	switch policy {
	case "", models.GenderAll:
		return true
	default:
		return gender == policy
	}
}

// CheckEligibility validates a buyer against an event's restriction policy.
// It returns nil when the buyer may purchase, or an EligibilityError naming
// the violated field.
func CheckEligibility(buyer *models.User, event *models.Event, now time.Time) error {
	if !AgeAllowed(buyer.AgeAt(now), event.AgeRestriction) {
		return &status.EligibilityError{
			Field:  "age",
			Policy: event.AgeRestriction,
			Value:  buyer.DateOfBirth.Format("2006-01-02"),
		}
	}

	if !GenderAllowed(buyer.Gender, event.GenderRestriction) {
		return &status.EligibilityError{
			Field:  "gender",
			Policy: event.GenderRestriction,
			Value:  buyer.Gender,
		}
	}

	return nil
}
