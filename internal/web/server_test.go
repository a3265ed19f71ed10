package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xedev/vendyz-backend/internal/state"
	"github.com/0xedev/vendyz-backend/internal/treasury"
	"github.com/0xedev/vendyz-backend/internal/types"
	"github.com/0xedev/vendyz-backend/internal/wallet"
)

const testServerKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

type fakeSnapshots struct{ snap *treasury.Snapshot }

func (f fakeSnapshots) Current() *treasury.Snapshot { return f.snap }

type fakeSponsors struct{ set types.SponsorSet }

func (f fakeSponsors) Current() types.SponsorSet { return f.set }

type fakeCredentials map[common.Address][]byte

func (f fakeCredentials) Credential(addr common.Address) ([]byte, error) {
	sealed, ok := f[addr]
	if !ok {
		return nil, state.ErrCredentialNotFound
	}
	return sealed, nil
}

func newTestServer(t *testing.T, creds fakeCredentials) (*WebServer, *wallet.Cipher) {
	t.Helper()
	cipher, err := wallet.NewCipher(testServerKey)
	require.NoError(t, err)
	return NewWebServer("0", fakeSnapshots{}, fakeSponsors{}, creds, cipher), cipher
}

func serveRequest(ws *WebServer, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ws.router.ServeHTTP(rec, req)
	return rec
}

func TestGetCredential_ReturnsDecryptedMnemonic(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000AA")
	mnemonic := "legal winner thank year wave sausage worth useful legal winner thank yellow"

	creds := fakeCredentials{}
	ws, cipher := newTestServer(t, creds)

	sealed, err := cipher.Encrypt([]byte(mnemonic))
	require.NoError(t, err)
	creds[owner] = sealed

	rec := serveRequest(ws, "/api/credentials/"+owner.Hex())
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, owner.Hex(), body["address"])
	assert.Equal(t, mnemonic, body["mnemonic"])
}

func TestGetCredential_NormalizesAddressCase(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000AA")

	creds := fakeCredentials{}
	ws, cipher := newTestServer(t, creds)

	sealed, err := cipher.Encrypt([]byte("secret phrase"))
	require.NoError(t, err)
	creds[owner] = sealed

	// Lowercase path must resolve to the same wallet.
	rec := serveRequest(ws, "/api/credentials/0x00000000000000000000000000000000000000aa")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetCredential_NotFound(t *testing.T) {
	ws, _ := newTestServer(t, fakeCredentials{})

	rec := serveRequest(ws, "/api/credentials/0x00000000000000000000000000000000000000BB")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["error"])
}

func TestGetCredential_InvalidAddress(t *testing.T) {
	ws, _ := newTestServer(t, fakeCredentials{})

	rec := serveRequest(ws, "/api/credentials/not-an-address")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCredential_UndecryptableSecret(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000CC")

	creds := fakeCredentials{owner: []byte("this was sealed under another key")}
	ws, _ := newTestServer(t, creds)

	rec := serveRequest(ws, "/api/credentials/"+owner.Hex())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
