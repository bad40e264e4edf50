package models

import "time"

// LoginChallenge is the pending second factor of a broker login.
type LoginChallenge struct {
	TokenID string `json:"-"`
	TwoFA   any    `json:"twofa,omitempty"`
}

// LoginGrant is what a broker hands back once the OTP is accepted.
type LoginGrant struct {
	Authorised   bool   `json:"authorised"`
	RequestToken string `json:"-"`
	CallbackURL  string `json:"callback_url,omitempty"`
}

// BrokerStatus reports whether a user holds a live session with a broker.
type BrokerStatus struct {
	Broker         string     `json:"broker"`
	Connected      bool       `json:"connected"`
	LastSync       *time.Time `json:"lastSync,omitempty"`
	LastImportDate string     `json:"lastImportDate,omitempty"`
}
