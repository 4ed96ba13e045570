// Package certs holds the credentials baked into the sensor build.
//
// The values below are a template. A deployer replaces CACert with the PEM
// of the CA that signed the MQTT broker certificate, and fills
// MQTTCertFingerprint with the SHA-1 fingerprint of the broker certificate:
//
//	openssl x509 -noout -in mqtt-serv.crt -fingerprint
//	credtool fingerprint mqtt-serv.crt
//
// Sample: MQTTCertFingerprint = []byte{0xFF, 0x00, 0xFF, 0x00, ...} (20 bytes)
package certs

// CACert is the trust anchor for the broker connection.
const CACert = `
-----BEGIN CERTIFICATE-----
//paste the contents of your ca cert file here
-----END CERTIFICATE-----
`

// FingerprintSize is the length of a SHA-1 certificate fingerprint.
const FingerprintSize = 20

// MQTTCertFingerprint pins the broker certificate. Empty disables pinning.
var MQTTCertFingerprint = []byte{}

// Fingerprint returns a copy of MQTTCertFingerprint so callers cannot
// mutate the compiled-in value.
func Fingerprint() []byte {
	out := make([]byte, len(MQTTCertFingerprint))
	copy(out, MQTTCertFingerprint)
	return out
}
