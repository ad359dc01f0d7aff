package exchange

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
)

const (
	// TokenProgramID is the SPL token program.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	closeAccountInstruction = 9
)

// RPCClient is a minimal Solana JSON-RPC client covering the calls the bot
// needs: balances, blockhashes and transaction submission.
type RPCClient struct {
	endpoint string
	client   *http.Client
	reqID    atomic.Uint64
}

func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("rpc %s: http %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("rpc %s: decode: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc %s: %d %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("rpc %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetSOLBalance returns the owner's native SOL balance in lamports.
func (c *RPCClient) GetSOLBalance(ctx context.Context, owner string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	params := []interface{}{owner, map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

type tokenAccountInfo struct {
	Pubkey string `json:"pubkey"`
	Amount uint64
}

// getTokenAccounts returns the owner's token accounts for mint, summing is
// left to the caller. Most wallets hold one ATA per mint.
func (c *RPCClient) getTokenAccounts(ctx context.Context, owner, mint string) ([]tokenAccountInfo, error) {
	var result struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	params := []interface{}{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]tokenAccountInfo, 0, len(result.Value))
	for _, v := range result.Value {
		var amount uint64
		if _, err := fmt.Sscanf(v.Account.Data.Parsed.Info.TokenAmount.Amount, "%d", &amount); err != nil {
			return nil, fmt.Errorf("parse token amount %q: %w", v.Account.Data.Parsed.Info.TokenAmount.Amount, err)
		}
		accounts = append(accounts, tokenAccountInfo{Pubkey: v.Pubkey, Amount: amount})
	}
	return accounts, nil
}

// GetTokenBalance returns the owner's raw balance of mint summed across its
// token accounts. No accounts at all is a confirmed zero.
func (c *RPCClient) GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	accounts, err := c.getTokenAccounts(ctx, owner, mint)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, a := range accounts {
		total += a.Amount
	}
	return total, nil
}

// GetLatestBlockhash returns the current blockhash for transaction building.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []interface{}{map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction (base64) and returns its
// signature.
func (c *RPCClient) SendTransaction(ctx context.Context, signedTxBase64 string) (string, error) {
	var signature string
	params := []interface{}{
		signedTxBase64,
		map[string]interface{}{"encoding": "base64", "skipPreflight": false, "maxRetries": 3},
	}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// Wallet holds the bot's signing key.
type Wallet struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// NewWallet parses a base58 encoded ed25519 private key (64 bytes, secret
// followed by public, as exported by most Solana wallets).
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{priv: priv, pubkey: base58.Encode(pub)}, nil
}

func (w *Wallet) Address() string { return w.pubkey }

// SignTransaction signs a serialized unsigned transaction (base64, as
// returned by the swap API) and returns it ready for submission. The wallet
// must be the fee payer, whose signature is the first slot.
func (w *Wallet) SignTransaction(unsignedTxBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(unsignedTxBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	numSigs, sigOffset, err := decodeShortvec(raw)
	if err != nil {
		return "", fmt.Errorf("malformed transaction: %w", err)
	}
	if numSigs < 1 {
		return "", fmt.Errorf("transaction has no signature slots")
	}
	msgStart := sigOffset + numSigs*ed25519.SignatureSize
	if msgStart > len(raw) {
		return "", fmt.Errorf("transaction truncated: %d signature slots in %d bytes", numSigs, len(raw))
	}

	sig := ed25519.Sign(w.priv, raw[msgStart:])
	copy(raw[sigOffset:], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// BuildCloseAccountTx builds and signs a legacy transaction holding a single
// SPL close-account instruction, returning rent to the wallet.
func (w *Wallet) BuildCloseAccountTx(tokenAccount, recentBlockhash string) (string, error) {
	accountKey, err := base58.Decode(tokenAccount)
	if err != nil {
		return "", fmt.Errorf("decode token account: %w", err)
	}
	programKey, err := base58.Decode(TokenProgramID)
	if err != nil {
		return "", err
	}
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil {
		return "", fmt.Errorf("decode blockhash: %w", err)
	}
	ownerKey := []byte(w.priv.Public().(ed25519.PublicKey))

	// Message: header {1 signer, 0 readonly-signed, 1 readonly-unsigned},
	// keys [owner, tokenAccount, program], blockhash, one instruction.
	var msg bytes.Buffer
	msg.Write([]byte{1, 0, 1})
	msg.WriteByte(3)
	msg.Write(ownerKey)
	msg.Write(accountKey)
	msg.Write(programKey)
	msg.Write(blockhash)
	msg.WriteByte(1)           // instruction count
	msg.WriteByte(2)           // program index
	msg.WriteByte(3)           // account count
	msg.Write([]byte{1, 0, 0}) // tokenAccount, owner (dest), owner (authority)
	msg.WriteByte(1)           // data length
	msg.WriteByte(closeAccountInstruction)

	sig := ed25519.Sign(w.priv, msg.Bytes())

	var tx bytes.Buffer
	tx.WriteByte(1) // one signature
	tx.Write(sig)
	tx.Write(msg.Bytes())

	return base64.StdEncoding.EncodeToString(tx.Bytes()), nil
}

// decodeShortvec reads a compact-u16 length prefix and returns the value and
// the offset of the first byte after it.
func decodeShortvec(data []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("short input")
		}
		b := data[i]
		value |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("invalid compact-u16")
}
