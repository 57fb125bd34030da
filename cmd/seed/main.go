// seed inserts development identities, challenge answers and validators for local testing.
// Idempotent: every row is upserted by id. The built-in Rego policies are stored once as editable
// overrides; stored copies are never overwritten. Prints a validator bearer token when JWT_PRIVATE_KEY is set.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"voicetrust/backend/internal/challenge/domain"
	challengerepo "voicetrust/backend/internal/challenge/repository"
	"voicetrust/backend/internal/config"
	"voicetrust/backend/internal/db"
	identitydomain "voicetrust/backend/internal/identity/domain"
	identityrepo "voicetrust/backend/internal/identity/repository"
	"voicetrust/backend/internal/policy/engine"
	policyrepo "voicetrust/backend/internal/policy/repository"
	"voicetrust/backend/internal/security"
	validatordomain "voicetrust/backend/internal/validator/domain"
	validatorrepo "voicetrust/backend/internal/validator/repository"
)

type seedIdentity struct {
	identity identitydomain.Identity
	answers  map[domain.Key]string
}

var identities = []seedIdentity{
	{
		identity: identitydomain.Identity{ID: "merchant-001", Phone: "+2250701020304", DisplayName: "Awa", Persona: "auntie", Language: "fr"},
		answers:  map[domain.Key]string{domain.KeyMarketName: "Adjamé"},
	},
	{
		identity: identitydomain.Identity{ID: "merchant-002", Phone: "+2250505050505", DisplayName: "Koffi", Persona: "youth", Language: "fr"},
		answers: map[domain.Key]string{
			domain.KeyMarketName: "Treichville",
			domain.KeySellsWhat:  "pagnes",
		},
	},
	{
		// No answers on file: exercises the default question path.
		identity: identitydomain.Identity{ID: "merchant-003", Phone: "+2250102030405", DisplayName: "Fatou", Language: "en"},
	},
}

var validators = []validatordomain.Validator{
	{ID: "A1", Kind: validatordomain.KindAgent, DisplayName: "Agent Yao", Phone: "+2250700000001", PushToken: "dev-push-token-a1", Active: true},
	{ID: "A2", Kind: validatordomain.KindAgent, DisplayName: "Agent Mariam", Phone: "+2250700000002", Active: true},
	{ID: "C1", Kind: validatordomain.KindCoopOfficer, DisplayName: "Coop Officer Kouassi", Phone: "+2250700000003", PushToken: "dev-push-token-c1", Active: true},
	{ID: "A9", Kind: validatordomain.KindAgent, DisplayName: "Agent (inactive)", Phone: "+2250700000009", Active: false},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	hasher := security.NewHasher(cfg.BcryptCost)
	identityRepo := identityrepo.NewPostgresRepository(conn)
	answerRepo := challengerepo.NewPostgresRepository(conn)
	validatorRepo := validatorrepo.NewPostgresRepository(conn)

	for _, s := range identities {
		ident := s.identity
		ident.CreatedAt = now
		if err := identityRepo.Upsert(ctx, &ident); err != nil {
			log.Fatalf("upsert identity %s: %v", ident.ID, err)
		}
		for key, answer := range s.answers {
			hash, err := hasher.HashAnswer(answer)
			if err != nil {
				log.Fatalf("hash answer: %v", err)
			}
			if err := answerRepo.Upsert(ctx, &domain.Answer{IdentityID: ident.ID, Key: key, AnswerHash: hash, CreatedAt: now}); err != nil {
				log.Fatalf("upsert answer %s/%s: %v", ident.ID, key, err)
			}
		}
	}
	for i := range validators {
		v := validators[i]
		v.LastActiveAt = now.Add(-time.Duration(i) * time.Minute)
		if err := validatorRepo.Upsert(ctx, &v); err != nil {
			log.Fatalf("upsert validator %s: %v", v.ID, err)
		}
	}
	policyRepo := policyrepo.NewPostgresRepository(conn)
	for _, p := range engine.DefaultPolicies(now) {
		existing, err := policyRepo.GetByID(ctx, p.ID)
		if err != nil {
			log.Fatalf("get policy %s: %v", p.ID, err)
		}
		if existing != nil {
			continue
		}
		if _, err := engine.Install(ctx, policyRepo, p); err != nil {
			log.Fatalf("install policy %s: %v", p.ID, err)
		}
	}
	log.Printf("Seed completed: %d identities, %d validators, built-in policies stored.", len(identities), len(validators))

	if cfg.JWTPrivateKey == "" {
		return
	}
	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("parse JWT_PRIVATE_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(signer, nil, cfg.JWTIssuer, cfg.JWTAudience, cfg.ValidatorTokenTTL())
	token, expiresAt, err := tokens.IssueValidatorToken("A1", string(validatordomain.KindAgent))
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Printf("Validator A1 bearer token (expires %s):\n%s\n", expiresAt.Format(time.RFC3339), token)
}
