// AngelaMos | 2026
// dto.go

package payment

type CreatePaymentRequest struct {
	UserID      string `json:"userId"      validate:"required,max=255"`
	ProductName string `json:"productName" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Email       string `json:"email"       validate:"omitempty,email,max=255"`
	Price       int64  `json:"price"       validate:"required,gt=0"`
	Currency    string `json:"currency"    validate:"omitempty,len=3"`
	Quantity    int64  `json:"quantity"    validate:"omitempty,gte=1"`
}

type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// AckResponse is the webhook acknowledgement body. The provider only checks
// the status code; the receipt marker is for log correlation.
type AckResponse struct {
	Received bool `json:"received"`
}
