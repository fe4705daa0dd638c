package crossbell

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

// FaucetBase is where an underfunded signer can claim $CSB.
const FaucetBase = "https://faucet.crossbell.io/"

var _ migrate.TargetChecker = (*Client)(nil)

// Preflight is what the indexer reports about the token's account and its
// standing on one character.
type Preflight struct {
	CharacterID string
	Address     string
	Owner       string
	IsOperator  bool     // the account owns the character or is a listed operator
	Balance     *big.Int // wei, nil when the indexer does not report it
}

// LowBalance reports an account with no $CSB left to pay for transactions.
func (p Preflight) LowBalance() bool {
	return p.Balance != nil && p.Balance.Sign() <= 0
}

func FaucetURL(address string) string {
	return FaucetBase + "?address=" + address
}

// FormatCSB renders a wei amount in $CSB with four decimals.
func FormatCSB(wei *big.Int) string {
	if wei == nil {
		return "unknown"
	}
	r := new(big.Rat).SetFrac(wei, big.NewInt(1_000_000_000_000_000_000))
	return r.FloatString(4) + " CSB"
}

type accountResponse struct {
	Address string `json:"address"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type characterResponse struct {
	Owner string `json:"owner"`
}

type operatorsResponse struct {
	List []struct {
		Operator string `json:"operator"`
	} `json:"list"`
}

func characterID(targetIdentity string) error {
	if _, err := strconv.ParseUint(targetIdentity, 10, 64); err != nil {
		return &migrate.ConfigError{Field: "targetIdentity", Reason: "not a character id: " + targetIdentity}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.cfg.IndexerURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

// Preflight resolves the token's account and checks it against the
// character. A non-numeric or unknown character is a *migrate.ConfigError.
func (c *Client) Preflight(ctx context.Context, targetIdentity string) (Preflight, error) {
	if err := characterID(targetIdentity); err != nil {
		return Preflight{}, err
	}
	p := Preflight{CharacterID: targetIdentity}

	var account accountResponse
	if err := c.getJSON(ctx, "/v1/siwe/account", &account); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized {
			return p, &migrate.ConfigError{Field: "crossbell.token", Reason: "token rejected by the indexer"}
		}
		return p, fmt.Errorf("resolve account: %w", err)
	}
	p.Address = account.Address

	var character characterResponse
	if err := c.getJSON(ctx, "/v1/characters/"+targetIdentity, &character); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return p, &migrate.ConfigError{Field: "targetIdentity", Reason: "character " + targetIdentity + " does not exist"}
		}
		return p, fmt.Errorf("load character: %w", err)
	}
	p.Owner = character.Owner

	if sameAddress(p.Owner, p.Address) {
		p.IsOperator = true
	} else {
		var ops operatorsResponse
		if err := c.getJSON(ctx, "/v1/characters/"+targetIdentity+"/operators?limit=100", &ops); err != nil {
			return p, fmt.Errorf("list operators: %w", err)
		}
		for _, op := range ops.List {
			if sameAddress(op.Operator, p.Address) {
				p.IsOperator = true
				break
			}
		}
	}

	var balance balanceResponse
	err := c.getJSON(ctx, "/v1/siwe/account/balance", &balance)
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound:
		// indexer without a balance endpoint
	case err != nil:
		return p, fmt.Errorf("read balance: %w", err)
	default:
		if wei, ok := new(big.Int).SetString(balance.Balance, 10); ok {
			p.Balance = wei
		}
	}
	return p, nil
}

// CheckTarget fails with a *migrate.ConfigError unless the token may post
// notes on targetIdentity. A low balance is only logged. Passing answers are
// cached for the life of the client.
func (c *Client) CheckTarget(ctx context.Context, targetIdentity string) error {
	key := "target/" + targetIdentity
	if _, ok := c.seen.Get(key); ok {
		return nil
	}

	p, err := c.Preflight(ctx, targetIdentity)
	if err != nil {
		return err
	}
	if !p.IsOperator {
		return &migrate.ConfigError{
			Field:  "crossbell.token",
			Reason: fmt.Sprintf("account %s is not an operator of character %s", p.Address, targetIdentity),
		}
	}
	if p.LowBalance() {
		c.logger.Warn("signer has no $CSB, transactions may fail",
			"address", p.Address, "balance", FormatCSB(p.Balance), "faucet", FaucetURL(p.Address))
	}
	c.seen.SetDefault(key, true)
	return nil
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
