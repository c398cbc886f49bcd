// README: Service area record keyed by pincode.
package area

type Area struct {
	Pincode  string
	IsActive bool
}
