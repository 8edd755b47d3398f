package handler

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

const mailQueueName = "email_queue"

// 邮件类型，cmd/mail 根据类型选择模板
const (
	MailTypeCreateUser         = "create_user"
	MailTypeResetPassword      = "reset_password"
	MailTypeOptimizationReport = "optimization_report"
)

// publishMail 序列化邮件并投递到消息队列，由 mail worker 负责真正发送
func (h *Handler) publishMail(ctx context.Context, mailMessage domain.MailMessage) error {
	mailData, err := json.Marshal(mailMessage)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return h.mailChannel.PublishWithContext(
		ctx,
		"",
		mailQueueName,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         mailData,
		},
	)
}
