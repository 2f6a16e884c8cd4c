package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "sitesboard"
)

// Ключи кэша
const (
	RedisKeySummaryPrefix  = RedisNamespace + ":summary:"
	RedisKeyLastDatePrefix = RedisNamespace + ":lastdate:"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanArchiveInvalidate — движок аналитики сообщает о пересчете периода.
	// Payload: "period:date" или "*" для сброса всего кэша сводок.
	RedisChanArchiveInvalidate = RedisNamespace + ":archive:invalidate"
	// RedisChanSitesRefresh — в админке изменились сайты (имя, группа, URL).
	RedisChanSitesRefresh = RedisNamespace + ":sites:refresh"
)

// SummaryKey Генератор ключа кэша для снимка сводной таблицы
func SummaryKey(period, date, segment string) string {
	return fmt.Sprintf("%s%s:%s:%s", RedisKeySummaryPrefix, period, date, segment)
}

// LastDateKey Генератор ключа кэша для даты последнего периода с данными
func LastDateKey(period, date string) string {
	return fmt.Sprintf("%s%s:%s", RedisKeyLastDatePrefix, period, date)
}
