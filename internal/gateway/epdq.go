package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/calderapay/connector/pkg/config"
	"github.com/calderapay/connector/pkg/enums"
)

// ePDQ DirectLink maintenance operation for a full capture.
const epdqOperationCapture = "SAS"

// Maintenance statuses from the DirectLink reference. 91 means the capture
// request was accepted for processing.
const epdqStatusCapturePending = "91"

type epdqResponse struct {
	XMLName  xml.Name `xml:"ncresponse"`
	Status   string   `xml:"STATUS,attr"`
	PayID    string   `xml:"PAYID,attr"`
	NCError  string   `xml:"NCERROR,attr"`
	NCStatus string   `xml:"NCSTATUS,attr"`
}

// EpdqSubmitter captures authorised payments over ePDQ's DirectLink API.
type EpdqSubmitter struct {
	url    string
	client *http.Client
}

// NewEpdqSubmitter builds the ePDQ provider from config.
func NewEpdqSubmitter(cfg config.EpdqConfig) *EpdqSubmitter {
	return &EpdqSubmitter{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *EpdqSubmitter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderEpdq
}

func (e *EpdqSubmitter) SubmitCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if req.GatewayTransactionID == "" {
		return CaptureResult{}, errors.New("epdq capture requires a payment id")
	}
	pspID := req.CredentialFields["merchant_id"]
	username := req.CredentialFields["username"]
	password := req.CredentialFields["password"]
	passphrase := req.CredentialFields["sha_in_passphrase"]
	if pspID == "" || username == "" || password == "" || passphrase == "" {
		return CaptureResult{}, errors.New("epdq capture requires merchant_id, username, password and sha_in_passphrase")
	}

	params := map[string]string{
		"PSPID":     pspID,
		"USERID":    username,
		"PSWD":      password,
		"PAYID":     req.GatewayTransactionID,
		"OPERATION": epdqOperationCapture,
	}
	params["SHASIGN"] = epdqShaSign(params, passphrase)

	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, strings.NewReader(form.Encode()))
	if err != nil {
		return CaptureResult{}, fmt.Errorf("build epdq request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if timedOut(err) {
			return CaptureResult{Outcome: CaptureOutcomeTimeout, Message: err.Error()}, nil
		}
		return CaptureResult{Outcome: CaptureOutcomeFailure, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CaptureResult{Outcome: CaptureOutcomeFailure, Message: err.Error()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return CaptureResult{
			Outcome: CaptureOutcomeFailure,
			Message: fmt.Sprintf("epdq returned HTTP %d", resp.StatusCode),
		}, nil
	}

	var parsed epdqResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return CaptureResult{Outcome: CaptureOutcomeFailure, Message: err.Error()}, nil
	}
	if parsed.Status != epdqStatusCapturePending {
		return CaptureResult{
			Outcome:               CaptureOutcomeFailure,
			ProviderTransactionID: parsed.PayID,
			Message:               fmt.Sprintf("epdq status %s (error %s)", parsed.Status, parsed.NCError),
		}, nil
	}
	return CaptureResult{
		Outcome:               CaptureOutcomeSuccess,
		ProviderTransactionID: parsed.PayID,
	}, nil
}

// epdqShaSign is the SHA-512 signature over the sorted KEY=value pairs, each
// suffixed with the shared passphrase.
func epdqShaSign(params map[string]string, passphrase string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		builder.WriteString(strings.ToUpper(key))
		builder.WriteString("=")
		builder.WriteString(params[key])
		builder.WriteString(passphrase)
	}
	digest := sha512.Sum512([]byte(builder.String()))
	return strings.ToUpper(hex.EncodeToString(digest[:]))
}
