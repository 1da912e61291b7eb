// Package dns resolves DKIM public keys over DNS-over-HTTPS. The fetched key
// is the verifier-side root of trust: its commitment must match the one the
// proof exposes.
package dns

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type DoHResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// GetTXT returns all TXT records for a given hostname via Cloudflare DoH.
func GetTXT(hostname string) ([]string, error) {
	dohURL := "https://cloudflare-dns.com/dns-query"

	u, err := url.Parse(dohURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("name", hostname)
	q.Set("type", "TXT")
	u.RawQuery = q.Encode()

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/dns-json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("DoH request failed with status code: %d", resp.StatusCode)
	}

	var dohResp DoHResponse
	if err := json.NewDecoder(resp.Body).Decode(&dohResp); err != nil {
		return nil, err
	}
	if dohResp.Status != 0 {
		return nil, nil
	}

	var txtRecords []string
	for _, ans := range dohResp.Answer {
		if ans.Type == 16 {
			txtRecords = append(txtRecords, strings.Trim(ans.Data, "\""))
		}
	}
	return txtRecords, nil
}

// LookupDKIMKey fetches <selector>._domainkey.<domain> and parses the RSA
// public key out of the DKIM TXT record.
func LookupDKIMKey(selector, domain string) (*rsa.PublicKey, error) {
	hostname := fmt.Sprintf("%s._domainkey.%s", selector, domain)
	records, err := GetTXT(hostname)
	if err != nil {
		return nil, fmt.Errorf("TXT lookup for %s: %w", hostname, err)
	}
	for _, rec := range records {
		pub, err := ParseDKIMRecord(rec)
		if err == nil {
			return pub, nil
		}
	}
	return nil, fmt.Errorf("no usable DKIM record at %s", hostname)
}

// ParseDKIMRecord extracts the RSA key from a "v=DKIM1; k=rsa; p=..." record.
func ParseDKIMRecord(record string) (*rsa.PublicKey, error) {
	var p string
	for _, part := range strings.Split(record, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "k=") && part[2:] != "rsa" {
			return nil, fmt.Errorf("unsupported key type %q", part[2:])
		}
		if strings.HasPrefix(part, "p=") {
			p = part[2:]
		}
	}
	if p == "" {
		return nil, fmt.Errorf("record has no p= tag")
	}

	der, err := base64.StdEncoding.DecodeString(p)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 in p= tag: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("invalid public key DER: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("DKIM key is not RSA")
	}
	return rsaKey, nil
}
