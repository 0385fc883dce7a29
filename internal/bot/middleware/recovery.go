package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic вызывается через defer в горутине обработки апдейта.
// Паника в одном обработчике не должна ронять polling.
func RecoverFromPanic(updateID int) {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"update_id": updateID,
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("ПАНИКА в обработчике — восстановлено")
	}
}
