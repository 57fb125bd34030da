package domain

import "time"

// Key identifies a knowledge-based challenge question.
type Key string

const (
	KeyMarketName      Key = "MARKET_NAME"
	KeyMotherFirstName Key = "MOTHER_FIRST_NAME"
	KeySellsWhat       Key = "SELLS_WHAT"
	KeyMarketNickname  Key = "MARKET_NICKNAME"
)

// DefaultKey is asked when an identity has no configured answers.
const DefaultKey = KeyMarketName

// Answer is a hashed knowledge-based answer bound to an identity (challenge_answers table).
type Answer struct {
	IdentityID string
	Key        Key
	AnswerHash string
	CreatedAt  time.Time
}
