package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

type mailTemplate struct {
	file    string
	subject string
}

// 邮件类型到模板的映射，类型与 handler 中投递时使用的一致
var mailTemplates = map[string]mailTemplate{
	"create_user":         {file: "new_account_email.html", subject: "作业调度系统 - 账户信息"},
	"reset_password":      {file: "reset_password_otp_email.html", subject: "作业调度系统 - 重置密码"},
	"optimization_report": {file: "optimization_report_email.html", subject: "作业调度系统 - 运行结果"},
}

func buildMessage(from string, mailMessage *domain.MailMessage) (*mail.Msg, error) {
	t, ok := mailTemplates[mailMessage.Type]
	if !ok {
		return nil, fmt.Errorf("不支持的邮件类型 %q", mailMessage.Type)
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := m.To(mailMessage.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	tmpl, err := template.ParseFiles(filepath.Join("templates", t.file))
	if err != nil {
		return nil, fmt.Errorf("无法解析邮件模板: %w", err)
	}
	if err := m.SetBodyHTMLTemplate(tmpl, mailMessage.Data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	m.Subject(t.subject)

	return m, nil
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}

	// 启动时拨号只是检查配置和连通性，之后每封邮件由 DialAndSend 单独建立连接
	clientDialCtx, dialCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer dialCancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
		return
	}
	if err := client.Close(); err != nil {
		logger.Warn("无法关闭检查用的 SMTP 连接", slog.String("error", err.Error()))
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"email_queue", // 队列名称
		true,          // 持久化
		false,         // 没有消费者时不自动删除
		false,         // 非独占
		false,         // 等待 RabbitMQ 确认
		nil,
	)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 手动确认，发送失败的消息可以重新入队
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	w := &worker{
		logger:     logger,
		client:     client,
		publisher:  ch,
		from:       cfg.Email.SMTP.Username,
		queue:      q.Name,
		maxRetries: cfg.Email.MaxRetries,
		retryDelay: time.Duration(cfg.Email.RetryDelay) * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("消息通道已关闭")
					return
				}
				w.handleDelivery(ctx, msg)
			}
		}
	}()

	logger.Info("等待消息...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 mail worker...")
	cancel()
	wg.Wait()
	logger.Info("mail worker 已成功关闭")
}

// retryHeader 记录消息已经被重新投递的次数
const retryHeader = "x-retry-count"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type worker struct {
	logger     *slog.Logger
	client     *mail.Client
	publisher  publisher
	from       string
	queue      string
	maxRetries int
	retryDelay time.Duration
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// retryPublishing 复制原消息并把重试次数加一
func retryPublishing(msg amqp.Delivery) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(retryCount(msg.Headers) + 1)

	return amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         msg.Body,
	}
}

func (w *worker) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	mailMessage := domain.MailMessage{}
	if err := json.Unmarshal(msg.Body, &mailMessage); err != nil {
		w.logger.Error("邮件信息反序列化失败", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}
	w.logger.Info("收到消息", slog.String("type", mailMessage.Type), slog.String("to", mailMessage.To))

	m, err := buildMessage(w.from, &mailMessage)
	if err != nil {
		w.logger.Error("无法构建邮件", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}

	if err := w.client.DialAndSend(m); err != nil {
		w.logger.Error("邮件发送失败", slog.String("error", err.Error()), slog.Int("retries", retryCount(msg.Headers)))
		w.retry(ctx, msg)
		return
	}

	_ = msg.Ack(false)
}

// retry 等待 retryDelay 后把消息重新发布到队列末尾，超过 maxRetries 次则丢弃
func (w *worker) retry(ctx context.Context, msg amqp.Delivery) {
	if retryCount(msg.Headers) >= w.maxRetries {
		w.logger.Error("重试次数已用完，丢弃邮件", slog.Int("maxRetries", w.maxRetries))
		_ = msg.Nack(false, false)
		return
	}

	select {
	case <-ctx.Done():
		// 正在退出，交还给 RabbitMQ，下次启动时再处理
		_ = msg.Nack(false, true)
		return
	case <-time.After(w.retryDelay):
	}

	if err := w.publisher.PublishWithContext(ctx, "", w.queue, false, false, retryPublishing(msg)); err != nil {
		w.logger.Error("无法重新投递邮件", slog.String("error", err.Error()))
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}
