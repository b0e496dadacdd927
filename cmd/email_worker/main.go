package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campuslink/account-service/config"
	"github.com/campuslink/account-service/pkg/mailer"
	mailtpl "github.com/campuslink/account-service/pkg/mailer/templates"
)

// Consumes email jobs published by the account service and delivers them
// via Mailgun. Template jobs are rendered from the embedded templates;
// pre-rendered jobs are sent as-is.
func main() {
	cfg := config.Load()
	if !cfg.MailSendEnabled {
		log.Println("MAIL_SEND_ENABLED=false; email worker disabled (no real emails will be sent)")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		log.Fatal("Mailgun not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	// Prefetch for fair dispatch
	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	if _, err := ch.QueueDeclare(cfg.RabbitMQEmailQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	ctx := context.Background()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var job mailer.EmailJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				log.Printf("bad message: %v", err)
				_ = msg.Nack(false, false)
				continue
			}

			subject, text, html := job.Subject, job.Text, job.HTML
			if job.Template != "" {
				data := templateData(cfg, job)
				s, t, h, err := mailtpl.Render(job.Template, data)
				if err != nil {
					log.Printf("render %q: %v", job.Template, err)
					_ = msg.Nack(false, false)
					continue
				}
				subject, text, html = s, t, h
			}

			sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := mg.Send(sendCtx, job.To, subject, text, html)
			cancel()
			if err != nil {
				log.Printf("send to %s: %v", job.To, err)
				// Requeue once; the broker drops it on the second failure.
				_ = msg.Nack(false, !msg.Redelivered)
				continue
			}
			_ = msg.Ack(false)
		}
		close(done)
	}()

	log.Printf("email worker consuming %q", cfg.RabbitMQEmailQueue)
	<-stop
	log.Println("shutting down email worker")
	_ = ch.Close()
	<-done
}

func templateData(cfg *config.Config, job mailer.EmailJob) map[string]any {
	data := map[string]any{
		"AppName":    cfg.AppName,
		"Email":      job.To,
		"Name":       "",
		"LoginURL":   cfg.LoginURL,
		"SupportURL": cfg.SupportURL,
	}
	for k, v := range job.Data {
		data[k] = v
	}
	return data
}
