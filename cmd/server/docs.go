// Package main Credit Engine API
//
//	@title			Credit Engine API
//	@version		1.0
//	@description	Credit ledger, payment event processing and usage rate limiting.
//
//	@contact.name	Platform Team
//
//	@license.name	Proprietary
//
//	@host			localhost:8080
//	@BasePath		/api/v1
//
//	@tag.name			Credits
//	@tag.description	Admin balance operations and ledger inspection
//
//	@tag.name			Usage
//	@tag.description	Admission of paid generation jobs
//
//	@tag.name			RateLimit
//	@tag.description	Usage windows and administered limits
//
//	@tag.name			Payment
//	@tag.description	Gateway-neutral payment events
//
//	@tag.name			Webhook
//	@tag.description	Payment gateway webhooks
//
//	@tag.name			Referral
//	@tag.description	Referral invitations and bonuses
package main
