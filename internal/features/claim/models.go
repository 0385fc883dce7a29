// Package claim проводит ежедневный клейм: проверка интервала, отправка
// транзакции, обновление стрика и рейтингов.
// models.go описывает результаты операций.
package claim

import "time"

// Result — итог успешного клейма.
type Result struct {
	TxHash        string    `json:"txHash"`
	CurrentStreak int       `json:"currentStreak"`
	BestStreak    int       `json:"bestStreak"`
	ClaimedAt     time.Time `json:"claimedAt"`
}

// LastClaimInfo — состояние последнего клейма адреса по данным контракта.
type LastClaimInfo struct {
	Address     string        `json:"address"`
	LastClaimAt time.Time     `json:"lastClaimAt"` // Нулевое время — клеймов не было
	TimeAgo     string        `json:"timeAgo"`
	NextClaimAt time.Time     `json:"nextClaimAt"`
	CanClaim    bool          `json:"canClaim"`
	Wait        time.Duration `json:"wait"` // Сколько ждать до следующего клейма
}
