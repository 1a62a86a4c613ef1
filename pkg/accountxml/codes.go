package accountxml

// Code is the four-digit error code carried in a ServiceError.
type Code string

// Codes observed from the account server. The list is not exhaustive.
const (
	CodeUnknown                  Code = "0000"
	CodeBadParameterFormat       Code = "0001"
	CodeBadRequestFormat         Code = "0002"
	CodeMissingRequestParameter  Code = "0003"
	CodeUnauthorizedClient       Code = "0004"
	CodeInvalidAccountToken      Code = "0005"
	CodeExpiredAccountToken      Code = "0006"
	CodeForbiddenRequest         Code = "0007"
	CodeRequestNotFound          Code = "0008"
	CodeInvalidHTTPMethod        Code = "0009"
	CodeInvalidPlatformID        Code = "0010"
	CodeSystemUpdateRequired     Code = "0011"
	CodeBannedDevice             Code = "0012"
	CodeAccountIDExists          Code = "0100"
	CodeInvalidAccountID         Code = "0101"
	CodeInvalidMailAddress       Code = "0103"
	CodeUnauthorizedDevice       Code = "0104"
	CodeRegistrationLimit        Code = "0105"
	CodeInvalidAccountPassword   Code = "0106"
	CodeCountryMismatch          Code = "0107"
	CodeBannedAccount            Code = "0108"
	CodeDeviceMismatch           Code = "0110"
	CodeAccountIDChanged         Code = "0111"
	CodeAccountDeleted           Code = "0112"
	CodeServiceClosed            Code = "0123"
	CodePIDNotFound              Code = "0130"
	CodeTempBannedAccount        Code = "0132"
	CodeDeviceInactive           Code = "0143"
	CodeEULANotAccepted          Code = "1004"
	CodeInvalidUniqueID          Code = "1006"
	CodeInvalidClientID          Code = "1022"
	CodeInvalidEULACountry       Code = "1100"
	CodeInvalidEULAVersion       Code = "1101"
	CodeParentalControlsRequired Code = "1103"
	CodeAccountIDFormatInvalid   Code = "1104"
	CodeAuthenticationLocked     Code = "1106"
	CodeCountryNotProvided       Code = "1200"
	CodeBadRequest               Code = "1600"
	CodeInternalServer           Code = "2001"
	CodeUnderMaintenance         Code = "2002"
	CodeNetworkClosed            Code = "2999"
)

var codeDescriptions = map[Code]string{
	CodeUnknown:                  "unknown error",
	CodeBadParameterFormat:       "a request parameter has the wrong format",
	CodeBadRequestFormat:         "the request format is invalid",
	CodeMissingRequestParameter:  "a request parameter is missing",
	CodeUnauthorizedClient:       "the client credentials were rejected",
	CodeInvalidAccountToken:      "the account token is invalid",
	CodeExpiredAccountToken:      "the account token has expired",
	CodeForbiddenRequest:         "the request is forbidden",
	CodeRequestNotFound:          "the requested resource does not exist",
	CodeInvalidHTTPMethod:        "the http method is not allowed",
	CodeInvalidPlatformID:        "the platform id is invalid",
	CodeSystemUpdateRequired:     "a system update is required",
	CodeBannedDevice:             "the device is banned",
	CodeAccountIDExists:          "the account id already exists",
	CodeInvalidAccountID:         "the account id is invalid",
	CodeInvalidMailAddress:       "the mail address is invalid",
	CodeUnauthorizedDevice:       "the device is not authorized",
	CodeRegistrationLimit:        "the device registration limit was reached",
	CodeInvalidAccountPassword:   "the account password is invalid",
	CodeCountryMismatch:          "the country does not match the account",
	CodeBannedAccount:            "the account is banned",
	CodeDeviceMismatch:           "the device does not match the account",
	CodeAccountIDChanged:         "the account id was changed",
	CodeAccountDeleted:           "the account was deleted",
	CodeServiceClosed:            "the service is closed",
	CodePIDNotFound:              "the principal id does not exist",
	CodeTempBannedAccount:        "the account is temporarily banned",
	CodeDeviceInactive:           "the device is inactive",
	CodeEULANotAccepted:          "the EULA has not been accepted",
	CodeInvalidUniqueID:          "the unique id is invalid",
	CodeInvalidClientID:          "the client id is invalid",
	CodeInvalidEULACountry:       "no EULA exists for the country",
	CodeInvalidEULAVersion:       "no EULA exists for the country and version",
	CodeParentalControlsRequired: "parental controls are required",
	CodeAccountIDFormatInvalid:   "the account id format is invalid",
	CodeAuthenticationLocked:     "authentication is locked",
	CodeCountryNotProvided:       "no country was provided",
	CodeBadRequest:               "the request could not be processed",
	CodeInternalServer:           "internal server error",
	CodeUnderMaintenance:         "the server is under maintenance",
	CodeNetworkClosed:            "the network service has been shut down",
}

// Description returns a short human readable description of the code.
func (c Code) Description() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return "unrecognised error code " + string(c)
}

// Known reports whether the code is in the table above.
func (c Code) Known() bool {
	_, ok := codeDescriptions[c]
	return ok
}
