// Package challenge picks and verifies knowledge-based challenge questions for an identity.
package challenge

import (
	"context"
	"math/rand/v2"

	"voicetrust/backend/internal/challenge/domain"
	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/platform/apperr"
	"voicetrust/backend/internal/security"
)

// AnswerReader is the read side of the challenge answer store.
type AnswerReader interface {
	ListByIdentity(ctx context.Context, identityID string) ([]*domain.Answer, error)
	GetAnswer(ctx context.Context, identityID string, key domain.Key) (*domain.Answer, error)
}

// Picker returns an index in [0, n). n is always > 0.
type Picker func(n int) int

// Verification is the outcome of checking a spoken or typed answer.
type Verification struct {
	// OnFile is false when the identity has no stored answer for the key (default question path).
	OnFile  bool
	Correct bool
}

// Bank selects challenge keys and verifies answers.
type Bank struct {
	answers AnswerReader
	hasher  *security.Hasher
	msgs    *localization.Engine
	pick    Picker
}

// NewBank returns a Bank. A nil picker selects uniformly with math/rand/v2.
func NewBank(answers AnswerReader, hasher *security.Hasher, msgs *localization.Engine, pick Picker) *Bank {
	if pick == nil {
		pick = rand.IntN
	}
	return &Bank{answers: answers, hasher: hasher, msgs: msgs, pick: pick}
}

// Pick selects one challenge key uniformly among the identity's configured keys.
// Returns DefaultKey when none are configured.
func (b *Bank) Pick(ctx context.Context, identityID string) (domain.Key, error) {
	answers, err := b.answers.ListByIdentity(ctx, identityID)
	if err != nil {
		return "", apperr.Unavailable("challenge bank", err)
	}
	keys := make([]domain.Key, 0, len(answers))
	seen := make(map[domain.Key]struct{}, len(answers))
	for _, a := range answers {
		if a == nil || a.Key == "" {
			continue
		}
		if _, dup := seen[a.Key]; dup {
			continue
		}
		seen[a.Key] = struct{}{}
		keys = append(keys, a.Key)
	}
	if len(keys) == 0 {
		return domain.DefaultKey, nil
	}
	return keys[b.pick(len(keys))], nil
}

// Question renders the localized question text for key.
func (b *Bank) Question(key domain.Key, language, persona string) string {
	step := localization.QuestionStep(string(key))
	if !b.msgs.Has(step) {
		step = localization.QuestionStep(string(domain.DefaultKey))
	}
	return b.msgs.Render(step, language, persona, nil)
}

// Verify checks answer against the stored hash for (identityID, key).
func (b *Bank) Verify(ctx context.Context, identityID string, key domain.Key, answer string) (Verification, error) {
	stored, err := b.answers.GetAnswer(ctx, identityID, key)
	if err != nil {
		return Verification{}, apperr.Unavailable("challenge bank", err)
	}
	if stored == nil {
		return Verification{OnFile: false}, nil
	}
	return Verification{OnFile: true, Correct: b.hasher.MatchAnswer(stored.AnswerHash, answer)}, nil
}
