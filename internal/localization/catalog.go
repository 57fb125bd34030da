package localization

// Personas shipped with the default catalog.
const (
	PersonaNeutral = "neutral"
	PersonaAuntie  = "auntie"
	PersonaYouth   = "youth"
)

// Languages shipped with the default catalog.
const (
	LangFrench  = "fr"
	LangEnglish = "en"
)

// DefaultCatalog returns the built-in message table. French/neutral is the terminal fallback.
func DefaultCatalog() Catalog {
	return Catalog{
		StepRetry: {
			LangFrench: {
				PersonaNeutral: "D'accord. Merci de redonner votre numéro de téléphone.",
				PersonaAuntie:  "Pas de souci mon enfant. Redis-moi ton numéro doucement.",
				PersonaYouth:   "Ok, on reprend. Redonne ton numéro.",
			},
			LangEnglish: {
				PersonaNeutral: "All right. Please give your phone number again.",
				PersonaAuntie:  "No problem, my dear. Tell me your number again slowly.",
				PersonaYouth:   "Okay, let's redo it. Say your number again.",
			},
		},
		StepRegister: {
			LangFrench: {
				PersonaNeutral: "Aucun compte n'existe pour ce numéro. Vous pouvez vous inscrire auprès d'un agent.",
				PersonaAuntie:  "Je ne te trouve pas encore chez nous. Un agent peut t'inscrire, ce n'est pas long.",
				PersonaYouth:   "Pas de compte sur ce numéro. Passe voir un agent pour t'inscrire.",
			},
			LangEnglish: {
				PersonaNeutral: "No account exists for this number. You can register with an agent.",
				PersonaAuntie:  "I can't find you with us yet. An agent can register you, it won't take long.",
				PersonaYouth:   "No account on this number. See an agent to sign up.",
			},
		},
		StepAskSocialQ: {
			LangFrench: {
				PersonaNeutral: "Bonjour {name}. Pour confirmer que c'est bien vous : {question}",
				PersonaAuntie:  "Bonjour {name}, ma fille. Dis-moi : {question}",
				PersonaYouth:   "Salut {name} ! Petite question : {question}",
			},
			LangEnglish: {
				PersonaNeutral: "Hello {name}. To confirm it is you: {question}",
				PersonaAuntie:  "Hello {name}, my dear. Tell me: {question}",
				PersonaYouth:   "Hey {name}! Quick one: {question}",
			},
		},
		StepDirect: {
			LangFrench: {
				PersonaNeutral: "Merci {name}, votre identité est confirmée.",
				PersonaAuntie:  "C'est bien toi {name}, tu peux continuer.",
				PersonaYouth:   "C'est validé {name}, vas-y.",
			},
			LangEnglish: {
				PersonaNeutral: "Thank you {name}, your identity is confirmed.",
				PersonaAuntie:  "It's really you {name}, you can go on.",
				PersonaYouth:   "You're in {name}, go ahead.",
			},
		},
		StepEscalate: {
			LangFrench: {
				PersonaNeutral: "Nous n'avons pas pu confirmer votre identité automatiquement. Un agent va vous aider.",
				PersonaAuntie:  "Ce n'est pas grave. Un agent va venir t'aider à confirmer.",
				PersonaYouth:   "Ça n'a pas marché direct. Un agent va t'aider.",
			},
			LangEnglish: {
				PersonaNeutral: "We could not confirm your identity automatically. An agent will help you.",
				PersonaAuntie:  "Don't worry. An agent will come and help you confirm.",
				PersonaYouth:   "Didn't go through. An agent will help you out.",
			},
		},
		StepEscalationCreated: {
			LangFrench: {
				PersonaNeutral: "Votre code de validation est : {code}. Donnez ce code à l'agent. Il est valable {minutes} minutes.",
				PersonaAuntie:  "Ton code est : {code}. Donne-le à l'agent, il marche pendant {minutes} minutes.",
				PersonaYouth:   "Ton code : {code}. Montre-le à l'agent, t'as {minutes} minutes.",
			},
			LangEnglish: {
				PersonaNeutral: "Your validation code is: {code}. Give this code to the agent. It is valid for {minutes} minutes.",
				PersonaAuntie:  "Your code is: {code}. Give it to the agent, it works for {minutes} minutes.",
				PersonaYouth:   "Your code: {code}. Show it to the agent, you've got {minutes} minutes.",
			},
		},
		StepValidatorRequest: {
			LangFrench: {
				PersonaNeutral: "Demande de validation pour {name} ({phone}). Code : {code}. Ouvrir : {link}",
			},
			LangEnglish: {
				PersonaNeutral: "Validation request for {name} ({phone}). Code: {code}. Open: {link}",
			},
		},
		StepIdentityConfirmed: {
			LangFrench: {
				PersonaNeutral: "Bonjour {name}, votre identité a été confirmée par un agent.",
				PersonaAuntie:  "{name}, l'agent a confirmé que c'est bien toi. Bonne journée !",
				PersonaYouth:   "{name}, c'est bon, l'agent t'a validé.",
			},
			LangEnglish: {
				PersonaNeutral: "Hello {name}, your identity has been confirmed by an agent.",
				PersonaAuntie:  "{name}, the agent confirmed it's really you. Have a good day!",
				PersonaYouth:   "{name}, you're good, the agent validated you.",
			},
		},
		StepApproved: {
			LangFrench:  {PersonaNeutral: "Validation enregistrée. L'identité du marchand est confirmée."},
			LangEnglish: {PersonaNeutral: "Validation recorded. The merchant's identity is confirmed."},
		},
		StepRejected: {
			LangFrench:  {PersonaNeutral: "Refus enregistré. Aucune session ne sera ouverte."},
			LangEnglish: {PersonaNeutral: "Rejection recorded. No session will be opened."},
		},
		StepExpired: {
			LangFrench:  {PersonaNeutral: "Cette demande a expiré. Le marchand doit refaire une demande."},
			LangEnglish: {PersonaNeutral: "This request has expired. The merchant must request again."},
		},
		StepAlreadyProcessed: {
			LangFrench:  {PersonaNeutral: "Cette demande a déjà été traitée (statut : {status})."},
			LangEnglish: {PersonaNeutral: "This request has already been processed (status: {status})."},
		},
		StepTicketNotFound: {
			LangFrench:  {PersonaNeutral: "Demande de validation introuvable."},
			LangEnglish: {PersonaNeutral: "Validation request not found."},
		},
		StepMerchantNotFound: {
			LangFrench:  {PersonaNeutral: "Nous ne trouvons pas ce compte."},
			LangEnglish: {PersonaNeutral: "We cannot find this account."},
		},
		StepForbidden: {
			LangFrench:  {PersonaNeutral: "Vous n'êtes pas autorisé à traiter cette demande."},
			LangEnglish: {PersonaNeutral: "You are not allowed to process this request."},
		},
		StepTryAgainLater: {
			LangFrench:  {PersonaNeutral: "Le service est momentanément indisponible. Réessayez dans un instant."},
			LangEnglish: {PersonaNeutral: "The service is temporarily unavailable. Please try again shortly."},
		},
		StepRateLimited: {
			LangFrench:  {PersonaNeutral: "Trop de tentatives. Merci de patienter quelques minutes."},
			LangEnglish: {PersonaNeutral: "Too many attempts. Please wait a few minutes."},
		},
		QuestionStep("MARKET_NAME"): {
			LangFrench: {
				PersonaNeutral: "Quel est le nom de votre marché ?",
				PersonaAuntie:  "Dans quel marché tu vends ?",
				PersonaYouth:   "C'est quoi ton marché ?",
			},
			LangEnglish: {
				PersonaNeutral: "What is the name of your market?",
				PersonaAuntie:  "Which market do you sell in?",
				PersonaYouth:   "What's your market?",
			},
		},
		QuestionStep("MOTHER_FIRST_NAME"): {
			LangFrench: {
				PersonaNeutral: "Quel est le prénom de votre mère ?",
				PersonaAuntie:  "Comment s'appelle ta maman ?",
			},
			LangEnglish: {
				PersonaNeutral: "What is your mother's first name?",
				PersonaAuntie:  "What is your mother's name?",
			},
		},
		QuestionStep("SELLS_WHAT"): {
			LangFrench: {
				PersonaNeutral: "Que vendez-vous principalement ?",
				PersonaYouth:   "Tu vends quoi surtout ?",
			},
			LangEnglish: {
				PersonaNeutral: "What do you mainly sell?",
				PersonaYouth:   "What do you sell mostly?",
			},
		},
		QuestionStep("MARKET_NICKNAME"): {
			LangFrench: {
				PersonaNeutral: "Quel est votre surnom au marché ?",
				PersonaAuntie:  "Comment on t'appelle au marché ?",
			},
			LangEnglish: {
				PersonaNeutral: "What is your nickname at the market?",
				PersonaAuntie:  "What do they call you at the market?",
			},
		},
	}
}
