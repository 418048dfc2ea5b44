package model

import "time"

type TicketStats struct {
	Total       int `json:"total"`
	Open        int `json:"open"`
	Closed      int `json:"closed"`
	TodayClosed int `json:"today_closed"`
}

type Ticket struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Customer   string    `json:"customer_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Status     int       `json:"status"`
	LastUpdate time.Time `json:"last_update"`
}
