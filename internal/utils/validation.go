package utils

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

// ParseJobLine 解析形如 "name deadline profit" 的一行
func ParseJobLine(line string) (domain.Job, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return domain.Job{}, fmt.Errorf("格式应为 \"名称 截止时间 收益\"，实际为 %q", line)
	}

	return parseJob(fields[0], fields[1], fields[2])
}

func parseJob(name, deadlineField, profitField string) (domain.Job, error) {
	deadline, err := strconv.Atoi(strings.TrimSpace(deadlineField))
	if err != nil {
		return domain.Job{}, fmt.Errorf("截止时间 %q 不是整数", deadlineField)
	}
	profit, err := strconv.Atoi(strings.TrimSpace(profitField))
	if err != nil {
		return domain.Job{}, fmt.Errorf("收益 %q 不是整数", profitField)
	}

	return domain.Job{Name: name, Deadline: deadline, Profit: profit}, nil
}

// ReadJobLines 逐行读取作业，空行和以 # 开头的行会被跳过
func ReadJobLines(r io.Reader) ([]domain.Job, error) {
	var jobs []domain.Job

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		job, err := ParseJobLine(line)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", lineNo, err)
		}
		jobs = append(jobs, job)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		return nil, errors.New("没有读取到任何作业")
	}

	return jobs, nil
}

// ReadJobsCSV 读取带表头 name,deadline,profit 的 CSV，列的顺序可以任意
func ReadJobsCSV(r io.Reader) ([]domain.Job, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	columns := map[string]int{}
	for i, header := range headers {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, key := range []string{"name", "deadline", "profit"} {
		if _, ok := columns[key]; !ok {
			return nil, fmt.Errorf("缺少 %s 列", key)
		}
	}

	var jobs []domain.Job
	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		// CSV 中的名称允许包含空格
		job, err := parseJob(strings.TrimSpace(row[columns["name"]]), row[columns["deadline"]], row[columns["profit"]])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		jobs = append(jobs, job)
	}

	if len(jobs) == 0 {
		return nil, errors.New("没有读取到任何作业")
	}

	return jobs, nil
}

// ValidateJobSet 检查作业集合在入库之前是否合法
func ValidateJobSet(js *domain.JobSet, maxJobs int) error {
	if len(js.Jobs) == 0 {
		return errors.New("作业集合中至少需要一个作业")
	}
	if maxJobs > 0 && len(js.Jobs) > maxJobs {
		return fmt.Errorf("作业数量不能超过 %d", maxJobs)
	}
	for i, job := range js.Jobs {
		if strings.TrimSpace(job.Name) == "" {
			return fmt.Errorf("第 %d 个作业缺少名称", i+1)
		}
	}
	return nil
}
