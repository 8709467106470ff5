package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShippingAddressValidate(t *testing.T) {
	address := ShippingAddress{
		FirstName: "Ada", LastName: "Lovelace",
		Line1: "1 Analytical Way", City: "London", State: "LDN",
		PostalCode: "EC1", Country: "GB", Phone: "+44 20 0000 0000",
	}
	assert.NoError(t, address.Validate())

	// company and the second address line stay optional
	address.Company = ""
	address.Line2 = ""
	assert.NoError(t, address.Validate())

	missingCity := address
	missingCity.City = ""
	assert.ErrorIs(t, missingCity.Validate(), ErrInvalidAddress)

	missingPhone := address
	missingPhone.Phone = ""
	assert.ErrorIs(t, missingPhone.Validate(), ErrInvalidAddress)
}
