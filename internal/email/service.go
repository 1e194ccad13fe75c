package email

import (
	"fmt"
	"net/smtp"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	ops  string // operations inbox for stock alerts
}

// NewService creates a new email service
func NewService(host, port, from, ops string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		ops:  ops,
	}
}

// SendOutOfStockAlert tells the operations inbox a SKU has no stock left.
func (s *Service) SendOutOfStockAlert(sku string) error {
	subject := fmt.Sprintf("Out of stock: %s", sku)
	return s.send(s.ops, subject, BuildOutOfStockBody(sku))
}

// SendAllocationConfirmation confirms which batch an order line landed on.
func (s *Service) SendAllocationConfirmation(to, orderID, sku, batchRef string, qty int) error {
	subject := fmt.Sprintf("Order %s allocated", orderID)
	return s.send(to, subject, BuildAllocationConfirmationBody(orderID, sku, batchRef, qty))
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
