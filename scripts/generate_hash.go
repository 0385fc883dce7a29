//go:build ignore

// generate_hash.go — утилита для генерации Argon2id хеша пароля для /login.
// Запуск: go run scripts/generate_hash.go ваш_пароль
//
// Результат вставьте в .env как ADMIN_PASSWORD_HASH.
package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"serotonyl.ru/daily-login-bot/internal/features/admin"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Использование: go run scripts/generate_hash.go <пароль>")
		os.Exit(1)
	}

	// Случайная соль (16 байт)
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		fmt.Printf("Ошибка генерации соли: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Хеш пароля (вставьте в .env как ADMIN_PASSWORD_HASH):")
	fmt.Println(admin.HashPassword(os.Args[1], salt))
}
