package domain

import "fmt"

// Job: 一个待排程的作业，创建后不可修改，按值比较
type Job struct {
	Name     string `json:"name"`
	Deadline int    `json:"deadline"` // 截止时间仅作展示，不参与任何约束
	Profit   int    `json:"profit"`
}

func (j Job) String() string {
	return fmt.Sprintf("%s (D: %d, P: %d)", j.Name, j.Deadline, j.Profit)
}
