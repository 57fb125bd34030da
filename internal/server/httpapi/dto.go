package httpapi

import "time"

type confirmPhoneRequest struct {
	Phone   string `json:"normalized_phone_e164" validate:"required,e164"`
	YesNo   *bool  `json:"yes_no" validate:"required"`
	Lang    string `json:"lang" validate:"omitempty,max=8"`
	Persona string `json:"persona" validate:"omitempty,max=32"`
}

type confirmPhoneResponse struct {
	NextStep          string `json:"next_step"`
	MessageTTS        string `json:"message_tts"`
	MerchantID        string `json:"merchant_id,omitempty"`
	ChallengeKey      string `json:"challenge_key,omitempty"`
	ChallengeQuestion string `json:"challenge_question,omitempty"`
}

type verifyChallengeRequest struct {
	MerchantID   string   `json:"merchant_id" validate:"required"`
	ChallengeKey string   `json:"challenge_key" validate:"required,max=64"`
	Answer       string   `json:"answer" validate:"required,max=256"`
	TrustScore   *float64 `json:"trust_score" validate:"omitempty,gte=0,lte=1"`
	Lang         string   `json:"lang" validate:"omitempty,max=8"`
	Persona      string   `json:"persona" validate:"omitempty,max=32"`
}

type verifyChallengeResponse struct {
	NextStep    string   `json:"next_step"`
	MessageTTS  string   `json:"message_tts"`
	MerchantID  string   `json:"merchant_id"`
	ReasonCodes []string `json:"reason_codes"`
}

type escalateRequest struct {
	MerchantID      string `json:"merchant_id" validate:"required_without=Phone"`
	Phone           string `json:"phone_e164" validate:"omitempty,e164"`
	MethodPreferred string `json:"method_preferred" validate:"required"`
	Reason          string `json:"reason" validate:"omitempty,max=256"`
	Lang            string `json:"lang" validate:"omitempty,max=8"`
}

type escalateResponse struct {
	TicketID       string    `json:"ticket_id"`
	ValidationCode string    `json:"validation_code"`
	MessageTTS     string    `json:"message_tts"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type validationApproveRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
	AgentID  string `json:"agent_id" validate:"required"`
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Notes    string `json:"notes" validate:"omitempty,max=1024"`
	Lang     string `json:"lang" validate:"omitempty,max=8"`
}

type validationApproveResponse struct {
	SessionCreated bool   `json:"session_created"`
	MerchantID     string `json:"merchant_id,omitempty"`
	Message        string `json:"message"`
	Status         string `json:"status,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
