package models

import "time"

type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone,omitempty"`
	Gender           string    `json:"gender,omitempty"`
	DateOfBirth      time.Time `json:"date_of_birth,omitempty"`
	PayoutSubaccount string    `json:"-"`
}

// AgeAt returns the user's age in whole years at the given time, or -1 when
// the date of birth is unknown.
func (u *User) AgeAt(now time.Time) int {
	if u.DateOfBirth.IsZero() {
		return -1
	}
	age := now.Year() - u.DateOfBirth.Year()
	if now.YearDay() < u.DateOfBirth.YearDay() {
		age--
	}
	return age
}
