// Package dnsserver answers name service lookups over DNS.
//
// A TXT query for "<name>." resolves on the source network and a TXT query
// for "<name>.<network>." on the named network. Mapped names are answered
// with the owner address in hex, unmapped names with NXDOMAIN.
package dnsserver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
	"github.com/ruteri/ccns/devnet"
	"github.com/ruteri/ccns/interfaces"
)

// lookupTimeout bounds a single query against a record store.
const lookupTimeout = 5 * time.Second

// Handler implements dns.Handler on top of a deployed devnet.
type Handler struct {
	net         *devnet.Devnet
	suffixLabel string
	log         *slog.Logger
}

// NewHandler creates a DNS handler for net.
func NewHandler(net *devnet.Devnet, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	suffix := net.Config().Suffix
	if suffix == "" {
		suffix = interfaces.DefaultNameSuffix
	}
	return &Handler{
		net:         net,
		suffixLabel: strings.Trim(suffix, "."),
		log:         log,
	}
}

// resolveQuestion splits a query name into the network lookup and the name to resolve.
func (h *Handler) resolveQuestion(qname string) (interfaces.NameLookup, string, error) {
	labels := dns.SplitDomainName(qname)
	if len(labels) == 0 {
		return nil, "", devnet.ErrUnknownNetwork
	}

	last := labels[len(labels)-1]
	if strings.EqualFold(last, h.suffixLabel) {
		return h.net.Source().Lookup, strings.Join(labels, "."), nil
	}

	chain, err := h.net.Chain(last)
	if err != nil {
		return nil, "", err
	}
	return chain.Lookup, strings.Join(labels[:len(labels)-1], "."), nil
}

// ServeDNS answers every question of r. The first question that fails sets the response code.
func (h *Handler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	for _, q := range r.Question {
		if q.Qclass != dns.ClassINET && q.Qclass != dns.ClassANY {
			continue
		}

		nameLookup, name, err := h.resolveQuestion(q.Name)
		if err != nil {
			m.Rcode = dns.RcodeNameError
			break
		}

		owner, err := nameLookup.Lookup(ctx, name)
		if err != nil {
			h.log.Error("DNS lookup failed", slog.String("name", name), "err", err)
			m.Rcode = dns.RcodeServerFailure
			break
		}
		if owner == (common.Address{}) {
			m.Rcode = dns.RcodeNameError
			break
		}

		if q.Qtype == dns.TypeTXT || q.Qtype == dns.TypeANY {
			m.Answer = append(m.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 0},
				Txt: []string{owner.Hex()},
			})
		}
	}

	if err := w.WriteMsg(m); err != nil {
		h.log.Warn("Failed to write DNS response", "err", err)
	}
}
