// Package common — sender.go описывает отправку ответов пользователю.
package common

import "context"

// Sender отправляет текстовые сообщения в чат.
// Реализация поверх Telegram живёт в пакете bot, в тестах — запись в срез.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string)
}
