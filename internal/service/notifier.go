package service

import (
	"fmt"
	"net/smtp"
	"sync"

	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/config"
)

type mailJob struct {
	to      string
	subject string
	body    string
}

// MailNotifier delivers escalation mail through SMTP from a single
// background worker. Enqueue never blocks: when the queue is full or
// SMTP is unconfigured the notification is dropped and logged, because
// an escalation mail must never slow down a chat turn.
type MailNotifier struct {
	cfg    config.SMTPConfig
	jobs   chan mailJob
	wg     sync.WaitGroup
	logger *zap.Logger

	closeOnce sync.Once
}

// NewMailNotifier creates the notifier and starts its delivery worker.
func NewMailNotifier(cfg config.SMTPConfig, logger *zap.Logger) *MailNotifier {
	n := &MailNotifier{
		cfg:    cfg,
		jobs:   make(chan mailJob, 64),
		logger: logger,
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Enqueue queues one notification, fire-and-forget.
func (n *MailNotifier) Enqueue(to, subject, body string) {
	select {
	case n.jobs <- mailJob{to: to, subject: subject, body: body}:
	default:
		n.logger.Warn("notification queue full, dropping",
			zap.String("to", to), zap.String("subject", subject))
	}
}

// Close stops accepting notifications and drains the queue.
func (n *MailNotifier) Close() {
	n.closeOnce.Do(func() { close(n.jobs) })
	n.wg.Wait()
}

func (n *MailNotifier) run() {
	defer n.wg.Done()
	for job := range n.jobs {
		if err := n.send(job); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("to", job.to), zap.Error(err))
		}
	}
}

func (n *MailNotifier) send(job mailJob) error {
	if n.cfg.Host == "" {
		n.logger.Info("smtp not configured, notification dropped",
			zap.String("to", job.to), zap.String("subject", job.subject))
		return nil
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := []byte("From: " + n.cfg.From + "\r\n" +
		"To: " + job.to + "\r\n" +
		"Subject: " + job.subject + "\r\n" +
		"\r\n" +
		job.body + "\r\n")

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	return smtp.SendMail(addr, auth, n.cfg.From, []string{job.to}, msg)
}
