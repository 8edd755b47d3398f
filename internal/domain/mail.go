package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResetPasswordMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}

type OptimizationReportMailData struct {
	FullName       string   `json:"fullName"`
	JobSetName     string   `json:"jobSetName"`
	RunID          int64    `json:"runID"`
	GenerationsRun int      `json:"generationsRun"`
	StopReason     string   `json:"stopReason"`
	BestOrder      []string `json:"bestOrder"`
	BestProfit     int      `json:"bestProfit"`
}
