package models

// Group is a channel category (group-title / EXTGRP).
type Group struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	SourceID     int64  `json:"source_id,omitempty"`
	ChannelCount int    `json:"channel_count"`
}
