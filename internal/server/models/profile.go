package models

import "time"

// Server is a proxy host record.
type Server struct {
	ID     int64
	Name   string
	Host   string
	Port   int
	Type   string
	Status string
}

// ConfigProfile binds an account to a server with protocol parameters.
// TrafficLimitGB/TrafficUsedGB are a coarse per-profile quota kept apart from
// the byte-level ledger.
type ConfigProfile struct {
	ID             int64
	Name           string
	AccountID      int64
	ServerID       int64
	Protocol       string
	ConfigData     string
	TrafficLimitGB *float64
	TrafficUsedGB  float64
	ExpiryDate     *time.Time
	IsActive       bool
}

// AccountRef is the slice of an account a renderer needs.
type AccountRef struct {
	ID       int64
	Username string
	Email    string
}

// ServerRef is the slice of a server a renderer needs.
type ServerRef struct {
	ID   int64
	Host string
	Port int
	Type string
}

// ProfileView is the render input read in one query. Account or Server is
// nil when the referenced row no longer exists.
type ProfileView struct {
	Profile ConfigProfile
	Account *AccountRef
	Server  *ServerRef
}
