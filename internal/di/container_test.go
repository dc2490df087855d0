package di

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/signal-mail-bridge/internal/bridge"
	"github.com/mikey/signal-mail-bridge/internal/config"
	"github.com/mikey/signal-mail-bridge/internal/directory"
	"github.com/mikey/signal-mail-bridge/internal/format"
	"github.com/mikey/signal-mail-bridge/internal/mimedecode"
	"github.com/mikey/signal-mail-bridge/internal/ports"
	"github.com/mikey/signal-mail-bridge/internal/route"
)

const testConfig = `
mail:
  imap:
    host: imap.example.org
  smtp:
    host: smtp.example.org
  user: bridge@example.org
  password: secret
  forward_from:
    - alice@example.org
  forward_to:
    - list@example.org
signal:
  config_path: %s
  number: "+4900"
  group_id: G1
  group_label: riders
  address_book:
    - name: Alice
      number: "+491111"
bridge:
  timezone: UTC
ledger:
  type: memory
logging:
  format: console
`

func TestBuildContainer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testConfig, dir)), 0o600))

	container, err := BuildContainer(path)
	require.NoError(t, err)

	err = container.Invoke(func(svc *bridge.Service, settings config.Settings, ledger ports.LedgerRepository, archive ports.MailArchive) {
		assert.NotNil(t, svc)
		assert.Equal(t, "G1", settings.HomeGroupID)
		assert.Equal(t, filepath.Join(dir, "attachments"), settings.AttachmentDir)
		assert.Equal(t, []string{"list@example.org"}, settings.ForwardTo)
		assert.NotNil(t, ledger)
		assert.Nil(t, archive)
	})
	require.NoError(t, err)
}

func TestBuildContainerRequiresGroup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := strings.Replace(fmt.Sprintf(testConfig, dir), "  group_id: G1\n", "", 1)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	container, err := BuildContainer(path)
	require.NoError(t, err)

	err = container.Invoke(func(*bridge.Service) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signal.group_id is required")
}

func TestBuildInspectContainer(t *testing.T) {
	container, err := BuildInspectContainer(&InspectFlags{GroupID: "G1", Label: "riders", Timezone: "UTC"})
	require.NoError(t, err)

	err = container.Invoke(func(
		router *route.Router,
		mails *mimedecode.Decoder,
		mailFmt *format.MailFormatter,
		dir *directory.AddressDirectory,
	) {
		assert.NotNil(t, router)
		assert.NotNil(t, mails)
		assert.NotNil(t, mailFmt)
		assert.Zero(t, dir.Len())
	})
	require.NoError(t, err)
}
