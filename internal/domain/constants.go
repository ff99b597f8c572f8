package domain

const (
	MethodBankTransfer = "bank_transfer"
	MethodCard         = "card"

	TopUpStatusPending  = "pending"
	TopUpStatusApproved = "approved"
	TopUpStatusRejected = "rejected"

	DecisionApprove = "approve"
	DecisionReject  = "reject"

	OrderStatusCreated    = "created"
	OrderStatusInProgress = "in_progress"
	OrderStatusDone       = "done"
	OrderStatusCancelled  = "cancelled"

	// Reference code prefixes, kept from the manual bank-reconciliation flow:
	// the account holder puts the code in the transfer memo and the admin
	// matches it against the bank statement.
	RefPrefixBank = "NAP_"
	RefPrefixCard = "CARD_"

	JournalKindTopUpCredit = "topup_credit"
	JournalKindOrderDebit  = "order_debit"
)
