package service

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"marketmaker/internal/models"
	"marketmaker/pkg/crypto"
)

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type WebSocketBroadcaster interface {
	BroadcastAlert(alert *models.Alert)
}

// AlertService предоставляет бизнес-логику центра оповещений.
//
// Отвечает за:
// - Создание оповещений (персист + broadcast в дашборд через WebSocket)
// - Email-доставку оповещений уровня error (асинхронно, по SMTP из AppConfig)
// - Чтение ленты и пометку прочитанных
//
// Реализует engine.Alerter: движок и менеджер ордеров зовут Alert
// изнутри торгового цикла, поэтому метод обязан быть неблокирующим.
type AlertService struct {
	alertRepo  AlertRepositoryInterface
	configRepo AppConfigRepositoryInterface
	cryptoKey  string
	wsHub      WebSocketBroadcaster
	log        *zap.Logger

	// sendMail подменяется в тестах; по умолчанию - реальная SMTP-доставка
	sendMail func(cfg *models.AppConfig, subject, body string) error
}

// NewAlertService создает новый экземпляр AlertService.
// cryptoKey - 32-байтный ключ AES-256 для расшифровки SMTP-пароля.
func NewAlertService(alertRepo AlertRepositoryInterface, configRepo AppConfigRepositoryInterface, cryptoKey string, log *zap.Logger) *AlertService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &AlertService{
		alertRepo:  alertRepo,
		configRepo: configRepo,
		cryptoKey:  cryptoKey,
		log:        log,
	}
	s.sendMail = s.smtpSend
	return s
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast оповещений.
// Вызывается после инициализации Hub в main.go.
func (s *AlertService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// Alert создает оповещение и рассылает его подписчикам.
//
// Ошибка персиста логируется, но не возвращается: вызывающая сторона -
// торговый цикл, которому некуда эскалировать сбой журнала оповещений.
// Email уходит только для уровня error и только если настроен получатель.
func (s *AlertService) Alert(level, message string) {
	alert := &models.Alert{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.alertRepo.Create(alert); err != nil {
		s.log.Error("failed to persist alert", zap.String("level", level), zap.Error(err))
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastAlert(alert)
	}

	if level == models.AlertLevelError {
		go s.emailAlert(message)
	}
}

// GetAlerts возвращает последние оповещения
func (s *AlertService) GetAlerts(limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.alertRepo.GetRecent(limit)
}

// MarkRead помечает оповещение прочитанным
func (s *AlertService) MarkRead(id int) error {
	return s.alertRepo.MarkRead(id)
}

// MarkAllRead помечает все оповещения прочитанными
func (s *AlertService) MarkAllRead() error {
	return s.alertRepo.MarkAllRead()
}

// CountUnread возвращает число непрочитанных оповещений
func (s *AlertService) CountUnread() (int, error) {
	return s.alertRepo.CountUnread()
}

// emailAlert отправляет email для критического оповещения.
// Любой сбой (нет конфигурации, SMTP недоступен) только логируется.
func (s *AlertService) emailAlert(message string) {
	cfg, err := s.configRepo.Get()
	if err != nil {
		s.log.Warn("alert email skipped: config unavailable", zap.Error(err))
		return
	}
	if cfg.AlertEmailTo == "" || cfg.SMTPHost == "" {
		return
	}

	subject := "[marketmaker] critical alert"
	if err := s.sendMail(cfg, subject, message); err != nil {
		s.log.Error("alert email failed",
			zap.String("smtp_host", cfg.SMTPHost),
			zap.Error(err))
		return
	}
	s.log.Info("alert email sent", zap.String("to", cfg.AlertEmailTo))
}

// smtpSend доставляет письмо по SMTP с PLAIN-аутентификацией.
// При smtp_tls=true используется implicit TLS (порт 465-стиль).
func (s *AlertService) smtpSend(cfg *models.AppConfig, subject, body string) error {
	password := ""
	if cfg.EncryptedSMTPPassword != "" {
		var err error
		password, err = crypto.DecryptWithKeyString(cfg.EncryptedSMTPPassword, s.cryptoKey)
		if err != nil {
			return fmt.Errorf("decrypt smtp password: %w", err)
		}
	}

	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	msg := []byte("From: " + cfg.SMTPUser + "\r\n" +
		"To: " + cfg.AlertEmailTo + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n" +
		"\r\n" + body + "\r\n")

	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, password, cfg.SMTPHost)
	}

	if !cfg.SMTPTLS {
		return smtp.SendMail(addr, auth, cfg.SMTPUser, []string{cfg.AlertEmailTo}, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.SMTPHost})
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	client, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(cfg.SMTPUser); err != nil {
		return err
	}
	if err := client.Rcpt(cfg.AlertEmailTo); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
