// Package locality classifies a caller's network address as inside or
// outside the trusted hospital perimeter. Classification is pure and
// fail-closed: anything that cannot be parsed counts as outside.
package locality

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Classifier holds the trusted perimeter as a set of CIDR ranges.
type Classifier struct {
	nets []*net.IPNet
}

// NewClassifier builds a Classifier from CIDR strings.
func NewClassifier(cidrs []string) (*Classifier, error) {
	c := &Classifier{}
	for _, raw := range cidrs {
		_, ipnet, err := net.ParseCIDR(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse trusted CIDR %q: %w", raw, err)
		}
		c.nets = append(c.nets, ipnet)
	}
	return c, nil
}

// Inside reports whether addr falls within the trusted perimeter. Unparseable
// addresses classify as outside.
func (c *Classifier) Inside(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	if ip == nil {
		return false
	}
	for _, n := range c.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// IPCheckResponse is the payload served by the ip_check endpoint.
type IPCheckResponse struct {
	IP            string `json:"ip"`
	InsideNetwork bool   `json:"inside_network"`
}

// IPCheckHandler reports the caller's resolved address and its perimeter
// classification.
func IPCheckHandler(c *Classifier) echo.HandlerFunc {
	return func(ec echo.Context) error {
		ip := ec.RealIP()
		return ec.JSON(http.StatusOK, IPCheckResponse{
			IP:            ip,
			InsideNetwork: c.Inside(ip),
		})
	}
}
