// Package models holds the core entity types shared across the sync core,
// the durable store and the delivery layer. Every component exchanges value
// copies of these types; nothing is shared by reference.
package models

import (
	"encoding/json"
	"time"
)

// KYCStatus is the review state of a user's identity verification.
type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

// User represents a registered customer.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	PhoneNumber      string    `json:"phoneNumber"`
	KYCStatus        KYCStatus `json:"kycStatus"`
	BiometricEnabled bool      `json:"biometricEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TransactionStatus is the lifecycle state of a money transfer.
type TransactionStatus string

const (
	TransactionStatusCreated    TransactionStatus = "created"
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// SyncState tracks whether a locally created entity has reached the remote
// authority yet.
type SyncState string

const (
	SyncStateSynced  SyncState = "synced"
	SyncStatePending SyncState = "pending"
	SyncStateFailed  SyncState = "failed"
)

// Transaction is a money-transfer intent. TotalAmount = Amount + Fee at
// creation time. A transaction is immutable once completed or cancelled.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	RecipientName  string            `json:"recipientName"`
	RecipientPhone string            `json:"recipientPhone"`
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	ExchangeRate   float64           `json:"exchangeRate"`
	Fee            float64           `json:"fee"`
	TotalAmount    float64           `json:"totalAmount"`
	Status         TransactionStatus `json:"status"`
	Reference      string            `json:"reference"`
	Description    string            `json:"description,omitempty"`
	SyncStatus     SyncState         `json:"syncStatus"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Terminal reports whether the transaction may no longer be mutated.
func (t *Transaction) Terminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusCancelled
}

// TransactionUpdate is a partial update applied to a transaction by business
// identifier. Nil fields are left untouched.
type TransactionUpdate struct {
	Status         *TransactionStatus `json:"status,omitempty"`
	SyncStatus     *SyncState         `json:"syncStatus,omitempty"`
	Amount         *float64           `json:"amount,omitempty"`
	RecipientName  *string            `json:"recipientName,omitempty"`
	RecipientPhone *string            `json:"recipientPhone,omitempty"`
	Description    *string            `json:"description,omitempty"`
	UpdatedAt      *time.Time         `json:"updatedAt,omitempty"`
}

// Apply merges the update into the transaction. UpdatedAt never moves
// backwards, so racing last-write-wins updates stay monotonic.
func (u TransactionUpdate) Apply(t *Transaction) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.SyncStatus != nil {
		t.SyncStatus = *u.SyncStatus
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.RecipientName != nil {
		t.RecipientName = *u.RecipientName
	}
	if u.RecipientPhone != nil {
		t.RecipientPhone = *u.RecipientPhone
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	stamp := time.Now().UTC()
	if u.UpdatedAt != nil && u.UpdatedAt.After(stamp) {
		stamp = *u.UpdatedAt
	}
	if stamp.After(t.UpdatedAt) {
		t.UpdatedAt = stamp
	}
}

// DocumentType enumerates the accepted KYC proof documents.
type DocumentType string

const (
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeNationalID     DocumentType = "national_id"
	DocumentTypeDriversLicense DocumentType = "drivers_license"
	DocumentTypeUtilityBill    DocumentType = "utility_bill"
)

// KYCDocument is a captured identity or address proof awaiting review.
type KYCDocument struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	Type          DocumentType `json:"type"`
	FrontImageURI string       `json:"frontImageUri"`
	BackImageURI  string       `json:"backImageUri,omitempty"`
	Status        KYCStatus    `json:"status"`
	UploadedAt    time.Time    `json:"uploadedAt"`
	SyncStatus    SyncState    `json:"syncStatus"`
}

// KYCDocumentUpdate is a partial update applied to a KYC document.
type KYCDocumentUpdate struct {
	Status     *KYCStatus `json:"status,omitempty"`
	SyncStatus *SyncState `json:"syncStatus,omitempty"`
}

// Apply merges the update into the document.
func (u KYCDocumentUpdate) Apply(d *KYCDocument) {
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.SyncStatus != nil {
		d.SyncStatus = *u.SyncStatus
	}
}

// UserUpdate is a partial update applied to a user profile.
type UserUpdate struct {
	Email            *string    `json:"email,omitempty"`
	FirstName        *string    `json:"firstName,omitempty"`
	LastName         *string    `json:"lastName,omitempty"`
	PhoneNumber      *string    `json:"phoneNumber,omitempty"`
	KYCStatus        *KYCStatus `json:"kycStatus,omitempty"`
	BiometricEnabled *bool      `json:"biometricEnabled,omitempty"`
}

// Apply merges the update into the user and stamps UpdatedAt.
func (u UserUpdate) Apply(usr *User) {
	if u.Email != nil {
		usr.Email = *u.Email
	}
	if u.FirstName != nil {
		usr.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		usr.LastName = *u.LastName
	}
	if u.PhoneNumber != nil {
		usr.PhoneNumber = *u.PhoneNumber
	}
	if u.KYCStatus != nil {
		usr.KYCStatus = *u.KYCStatus
	}
	if u.BiometricEnabled != nil {
		usr.BiometricEnabled = *u.BiometricEnabled
	}
	usr.UpdatedAt = time.Now().UTC()
}

// RateSource marks how authoritative a cached exchange rate is.
type RateSource string

const (
	RateSourceLive    RateSource = "live"
	RateSourceCache   RateSource = "cache"
	RateSourceDefault RateSource = "default"
)

// ExchangeRate is a cached conversion rate. Stale entries are acceptable
// fallback data; Source tells the caller how fresh the figure is.
type ExchangeRate struct {
	FromCurrency string     `json:"fromCurrency"`
	ToCurrency   string     `json:"toCurrency"`
	Rate         float64    `json:"rate"`
	Timestamp    time.Time  `json:"timestamp"`
	Source       RateSource `json:"source"`
}

// SyncItemType classifies which handler processes a queued mutation.
type SyncItemType string

const (
	SyncItemTransaction  SyncItemType = "transaction"
	SyncItemKYC          SyncItemType = "kyc"
	SyncItemUser         SyncItemType = "user"
	SyncItemNotification SyncItemType = "notification"
)

// SyncAction is the mutation a queued item carries.
type SyncAction string

const (
	SyncActionCreate        SyncAction = "create"
	SyncActionUpdate        SyncAction = "update"
	SyncActionDelete        SyncAction = "delete"
	SyncActionRegisterToken SyncAction = "register_token"
)

// SyncItemStatus distinguishes live queue items from dead-lettered ones in
// the durable store. Dead letters carry an explicit status, not an id prefix.
type SyncItemStatus string

const (
	SyncItemStatusPending    SyncItemStatus = "pending"
	SyncItemStatusDeadLetter SyncItemStatus = "dead_letter"
)

// SyncItem is a pending mutation awaiting replay against the remote
// authority. Data is a snapshot of the affected entity plus any
// action-specific extra fields.
type SyncItem struct {
	ID         string          `json:"id"`
	Type       SyncItemType    `json:"type"`
	Action     SyncAction      `json:"action"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
	Status     SyncItemStatus  `json:"status,omitempty"`
}

// SecurityCheck is the device posture report produced at startup.
type SecurityCheck struct {
	IsRooted            bool `json:"isRooted"`
	IsEmulator          bool `json:"isEmulator"`
	HasValidCertificate bool `json:"hasValidCertificate"`
}

// Compromised reports whether the posture forbids startup.
func (c SecurityCheck) Compromised() bool {
	return c.IsRooted || !c.HasValidCertificate
}

// AuthResult is the uniform outcome of one authentication strategy.
type AuthResult struct {
	Success      bool   `json:"success"`
	Strategy     string `json:"strategy,omitempty"`
	BiometryType string `json:"biometryType,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

// NotificationType classifies inbound push payloads.
type NotificationType string

const (
	NotificationTransactionUpdate NotificationType = "transaction_update"
	NotificationKYCUpdate         NotificationType = "kyc_update"
	NotificationSecurityAlert     NotificationType = "security_alert"
)

// NotificationPayload is an inbound push message applied to local state.
type NotificationPayload struct {
	TransactionID string            `json:"transactionId,omitempty"`
	Type          NotificationType  `json:"type"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Data          map[string]string `json:"data,omitempty"`
}

// TransactionStats is an aggregate over a user's transaction history.
type TransactionStats struct {
	TotalTransactions      int     `json:"totalTransactions"`
	TotalAmount            float64 `json:"totalAmount"`
	SuccessfulTransactions int     `json:"successfulTransactions"`
	FailedTransactions     int     `json:"failedTransactions"`
}
