package dnsserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
	"github.com/ruteri/ccns/interfaces"
)

// ErrNameNotFound is returned by Resolve for unmapped names.
var ErrNameNotFound = errors.New("name not found")

// Resolve queries the DNS front-end at server for the owner of name.
// An empty network resolves on the source network.
func Resolve(ctx context.Context, server, name, network string) (common.Address, error) {
	qname := name
	if network != "" {
		qname += "." + network
	}

	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = false
	m.Question = []dns.Question{{Name: dns.Fqdn(qname), Qtype: dns.TypeTXT, Qclass: dns.ClassINET}}

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return common.Address{}, err
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return common.Address{}, fmt.Errorf("%w: %s", ErrNameNotFound, qname)
	default:
		return common.Address{}, fmt.Errorf("query for %s failed: %s", qname, dns.RcodeToString[in.Rcode])
	}

	for _, answer := range in.Answer {
		if txt, ok := answer.(*dns.TXT); ok && len(txt.Txt) > 0 {
			return interfaces.ParseAddress(txt.Txt[0])
		}
	}
	return common.Address{}, fmt.Errorf("%w: no TXT answer for %s", ErrNameNotFound, qname)
}
