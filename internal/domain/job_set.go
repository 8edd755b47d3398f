package domain

import "time"

type JobSet struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Jobs        []Job     `json:"jobs"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     int32     `json:"-"`
}

// JobSetMeta 用于列表展示，不包含具体的作业
type JobSetMeta struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	JobCount    int       `json:"jobCount"`
	CreatedAt   time.Time `json:"createdAt"`
}
