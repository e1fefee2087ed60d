package enums

// CheckoutStage names the states a single checkout moves through.
type CheckoutStage string

const (
	CheckoutStageReceived       CheckoutStage = "received"
	CheckoutStageValidated      CheckoutStage = "validated"
	CheckoutStageOrderPersisted CheckoutStage = "order_persisted"
	CheckoutStageCustomerSynced CheckoutStage = "customer_synced"
	CheckoutStageVoucherSynced  CheckoutStage = "voucher_synced"
	CheckoutStageConfirmed      CheckoutStage = "confirmed"
	CheckoutStageFailed         CheckoutStage = "failed"
)

func (s CheckoutStage) String() string {
	return string(s)
}

// IsBookkeeping reports whether the stage is a post-persistence side update.
func (s CheckoutStage) IsBookkeeping() bool {
	return s == CheckoutStageCustomerSynced || s == CheckoutStageVoucherSynced
}
