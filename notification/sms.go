package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/model"
)

// SMSSender delivers one text message and returns the provider's message id.
type SMSSender interface {
	Send(to, message string) (string, error)
}

type smsSender struct {
	AccountSID string
	AuthToken  string
	URL        string
	From       string
	HTTPClient http.Client
}

func NewSMSSender(acSID, authToken, apiURL, from string) SMSSender {
	return &smsSender{
		AccountSID: acSID,
		AuthToken:  authToken,
		URL:        fmt.Sprintf("%s/%s/Messages.json", apiURL, acSID),
		From:       from,
	}
}

func (s *smsSender) Send(to, message string) (string, error) {
	v := url.Values{}
	v.Set("To", to)
	v.Set("From", s.From)
	v.Set("Body", message)

	statusCode, sid, err := s.post(v)
	if err != nil {
		return "", fmt.Errorf("send: error sending sms: status code: %d: err: %s", statusCode, err)
	}
	return *sid, nil
}

func (s *smsSender) post(values url.Values) (*int, *string, error) {
	req, err := http.NewRequest(http.MethodPost, s.URL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, nil, err
	}

	req.SetBasicAuth(s.AccountSID, s.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		bodyBytes, err := ioutil.ReadAll(res.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("post: error reading sms body: %s", err)
		}

		var data map[string]interface{}
		if err := json.Unmarshal(bodyBytes, &data); err != nil {
			return nil, nil, fmt.Errorf("post: error unmarshalling response body: %s", err)
		}
		sid, _ := data["sid"].(string)
		return &res.StatusCode, &sid, nil
	}

	return &res.StatusCode, nil, fmt.Errorf("post: error making post request: %v", res.Status)
}

// PhoneLookup resolves a waitlist entry's customer to a phone number. Customer
// profiles live outside this service, so the lookup is injected.
type PhoneLookup func(ctx context.Context, customerID string) (string, bool)

// SMSDispatcher texts customers when their waitlist entry is promoted, and
// forwards every event to the wrapped dispatcher. SMS failures are logged,
// never propagated.
type SMSDispatcher struct {
	next   Dispatcher
	sender SMSSender
	lookup PhoneLookup
}

func NewSMSDispatcher(next Dispatcher, sender SMSSender, lookup PhoneLookup) *SMSDispatcher {
	return &SMSDispatcher{next: next, sender: sender, lookup: lookup}
}

func (d *SMSDispatcher) Dispatch(ctx context.Context, eventType string, payload interface{}) {
	if eventType == EventWaitlistPromoted {
		if entry, ok := payload.(model.WaitlistEntry); ok {
			d.text(ctx, entry)
		}
	}
	if d.next != nil {
		d.next.Dispatch(ctx, eventType, payload)
	}
}

func (d *SMSDispatcher) text(ctx context.Context, entry model.WaitlistEntry) {
	phone, ok := d.lookup(ctx, entry.CustomerID)
	if !ok {
		logger.Debugf(ctx, "text: no phone for customer %s, skipping sms", entry.CustomerID)
		return
	}

	message := fmt.Sprintf("Tickets you waited for are available. Your claim window is open for entry %s.", entry.ID)
	sid, err := d.sender.Send(phone, message)
	if err != nil {
		logger.Errorf(ctx, "text: error sending sms to customer %s: %+v", entry.CustomerID, err)
		return
	}
	logger.Debugf(ctx, "text: sms %s sent for waitlist entry %s", sid, entry.ID)
}
