package gateway

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/calderapay/connector/pkg/config"
	"github.com/calderapay/connector/pkg/enums"
)

const worldpayServiceVersion = "1.4"

type worldpayPaymentService struct {
	XMLName      xml.Name        `xml:"paymentService"`
	Version      string          `xml:"version,attr"`
	MerchantCode string          `xml:"merchantCode,attr"`
	Modify       *worldpayModify `xml:"modify,omitempty"`
	Reply        *worldpayReply  `xml:"reply,omitempty"`
}

type worldpayModify struct {
	OrderModification worldpayOrderModification `xml:"orderModification"`
}

type worldpayOrderModification struct {
	OrderCode string          `xml:"orderCode,attr"`
	Capture   worldpayCapture `xml:"capture"`
}

type worldpayCapture struct {
	Amount worldpayAmount `xml:"amount"`
}

type worldpayAmount struct {
	Value        int64  `xml:"value,attr"`
	CurrencyCode string `xml:"currencyCode,attr"`
	Exponent     int    `xml:"exponent,attr"`
}

type worldpayReply struct {
	CaptureReceived *worldpayCaptureReceived `xml:"ok>captureReceived"`
	Error           *worldpayError           `xml:"error"`
}

type worldpayCaptureReceived struct {
	OrderCode string `xml:"orderCode,attr"`
}

type worldpayError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// WorldpaySubmitter captures authorised orders over Worldpay's XML gateway.
type WorldpaySubmitter struct {
	url    string
	client *http.Client
}

// NewWorldpaySubmitter builds the Worldpay provider from config.
func NewWorldpaySubmitter(cfg config.WorldpayConfig) *WorldpaySubmitter {
	return &WorldpaySubmitter{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *WorldpaySubmitter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderWorldpay
}

func (w *WorldpaySubmitter) SubmitCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if req.GatewayTransactionID == "" {
		return CaptureResult{}, errors.New("worldpay capture requires an order code")
	}
	merchantCode := req.CredentialFields["merchant_id"]
	username := req.CredentialFields["username"]
	password := req.CredentialFields["password"]
	if merchantCode == "" || username == "" || password == "" {
		return CaptureResult{}, errors.New("worldpay capture requires merchant_id, username and password")
	}

	payload := worldpayPaymentService{
		Version:      worldpayServiceVersion,
		MerchantCode: merchantCode,
		Modify: &worldpayModify{
			OrderModification: worldpayOrderModification{
				OrderCode: req.GatewayTransactionID,
				Capture: worldpayCapture{
					Amount: worldpayAmount{
						Value:        req.AmountPence,
						CurrencyCode: "GBP",
						Exponent:     2,
					},
				},
			},
		},
	}

	body, err := xml.Marshal(payload)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("marshal worldpay capture request: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return CaptureResult{}, fmt.Errorf("build worldpay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml")
	httpReq.SetBasicAuth(username, password)

	resp, err := w.client.Do(httpReq)
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
			Message: fmt.Sprintf("worldpay returned HTTP %d", resp.StatusCode),
		}, nil
	}

	var reply worldpayPaymentService
	if err := xml.Unmarshal(raw, &reply); err != nil {
		return CaptureResult{Outcome: CaptureOutcomeFailure, Message: err.Error()}, nil
	}
	if reply.Reply == nil {
		return CaptureResult{Outcome: CaptureOutcomeFailure, Message: "worldpay reply missing"}, nil
	}
	if reply.Reply.Error != nil {
		return CaptureResult{
			Outcome: CaptureOutcomeFailure,
			Message: fmt.Sprintf("worldpay error %s: %s", reply.Reply.Error.Code, reply.Reply.Error.Message),
		}, nil
	}
	if reply.Reply.CaptureReceived == nil {
		return CaptureResult{Outcome: CaptureOutcomeFailure, Message: "worldpay capture not acknowledged"}, nil
	}
	return CaptureResult{
		Outcome:               CaptureOutcomeSuccess,
		ProviderTransactionID: reply.Reply.CaptureReceived.OrderCode,
	}, nil
}
