package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/licensegate/internal/notifications"
	"github.com/angelmondragon/licensegate/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensegate/pkg/errors"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/types"
)

// Command names.
const (
	CreateLicense = "createlicense"
	RevokeLicense = "revokelicense"
	ListLicenses  = "listlicenses"
	Lookup        = "lookup"
	MyLicense     = "mylicense"
	GenKey        = "genkey"
)

const (
	listPageSize = 20

	msgNoPermission  = "You don't have permission to do that."
	msgNoLicenses    = "No licenses found."
	msgMyNone        = "You don't have any licenses. Contact an admin to get one."
	msgMyAllRevoked  = "Your license(s) have been revoked. Contact an admin."
	msgUnknown       = "Unknown command."
	msgServerOffline = "license server unavailable"
)

// Gateway is the admin API as seen by the command front end.
type Gateway interface {
	Create(ctx context.Context, req types.CreateLicenseRequest, idempotencyKey string) (*types.IssuedLicense, error)
	GenerateKey(ctx context.Context, actor string) (*types.IssuedLicense, error)
	Revoke(ctx context.Context, key string) (*types.RevokeLicenseResponse, error)
	List(ctx context.Context, limit int) ([]types.License, error)
	Lookup(ctx context.Context, owner string) ([]types.License, error)
}

// Command is one parsed chat command. ID is the platform interaction id and doubles as
// the idempotency key for createlicense.
type Command struct {
	ID      string
	Name    string
	Caller  Caller
	Options map[string]string
}

func (c Command) option(name string) string {
	return strings.TrimSpace(c.Options[name])
}

// Reply is what the front end shows the caller. DirectMessage, when set, goes to the key owner.
type Reply struct {
	Content       string
	DirectMessage *DirectMessage
}

type DirectMessage struct {
	To      string
	Content string
}

type Dispatcher struct {
	gateway Gateway
	isAdmin IsAdminFunc
	logg    *logger.Logger
}

func NewDispatcher(gateway Gateway, isAdmin IsAdminFunc, logg *logger.Logger) (*Dispatcher, error) {
	if gateway == nil {
		return nil, fmt.Errorf("license gateway required")
	}
	if isAdmin == nil {
		return nil, fmt.Errorf("admin check required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{gateway: gateway, isAdmin: isAdmin, logg: logg}, nil
}

// Handle runs cmd and renders the outcome. Gateway failures become error replies.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) Reply {
	ctx = d.logg.WithFields(ctx, map[string]any{
		"command": cmd.Name,
		"caller":  cmd.Caller.ID,
	})

	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd.Name), "/"))
	if name == MyLicense {
		return d.myLicense(ctx, cmd)
	}

	switch name {
	case CreateLicense, RevokeLicense, ListLicenses, Lookup, GenKey:
	default:
		return Reply{Content: msgUnknown}
	}

	if !d.isAdmin(cmd.Caller) {
		d.logg.Warn(ctx, "command.denied")
		return Reply{Content: msgNoPermission}
	}

	switch name {
	case CreateLicense:
		return d.createLicense(ctx, cmd)
	case RevokeLicense:
		return d.revokeLicense(ctx, cmd)
	case ListLicenses:
		return d.listLicenses(ctx)
	case Lookup:
		return d.lookup(ctx, cmd)
	default:
		return d.genKey(ctx, cmd)
	}
}

func (d *Dispatcher) createLicense(ctx context.Context, cmd Command) Reply {
	owner := cmd.option("user")
	if owner == "" {
		return Reply{Content: "Error: user is required"}
	}
	expires := cmd.option("expires")
	notes := cmd.option("notes")

	issued, err := d.gateway.Create(ctx, types.CreateLicenseRequest{
		Owner:     owner,
		ExpiresAt: expires,
		Notes:     notes,
	}, cmd.ID)
	if err != nil {
		return d.failure(ctx, err)
	}

	d.logg.Info(d.logg.WithLicense(ctx, issued.Key), "command.license_created")

	var b strings.Builder
	b.WriteString("License created\n")
	fmt.Fprintf(&b, "User: %s\n", mention(issued.Owner))
	fmt.Fprintf(&b, "Key: `%s`\n", issued.Key)
	fmt.Fprintf(&b, "Expires: %s\n", expiryText(issued.ExpiresAt, "Never"))
	fmt.Fprintf(&b, "Notes: %s", orDash(issued.Notes))

	return Reply{
		Content: b.String(),
		DirectMessage: &DirectMessage{
			To: issued.Owner,
			Content: notifications.RenderMessage(models.License{
				Key:       issued.Key,
				Owner:     issued.Owner,
				ExpiresAt: issued.ExpiresAt,
				Notes:     issued.Notes,
			}),
		},
	}
}

func (d *Dispatcher) revokeLicense(ctx context.Context, cmd Command) Reply {
	key := cmd.option("key")
	if key == "" {
		return Reply{Content: "Error: key is required"}
	}

	res, err := d.gateway.Revoke(ctx, key)
	if err != nil {
		return d.failure(ctx, err)
	}

	switch res.Status {
	case "already_revoked":
		return Reply{Content: fmt.Sprintf("Key `%s` is already revoked.", res.Key)}
	case "blacklisted":
		return Reply{Content: fmt.Sprintf("Key `%s` was not on record and has been blacklisted.", res.Key)}
	default:
		return Reply{Content: fmt.Sprintf("License `%s` has been revoked.", res.Key)}
	}
}

func (d *Dispatcher) listLicenses(ctx context.Context) Reply {
	rows, err := d.gateway.List(ctx, 0)
	if err != nil {
		return d.failure(ctx, err)
	}
	if len(rows) == 0 {
		return Reply{Content: msgNoLicenses}
	}

	shown := min(len(rows), listPageSize)
	lines := make([]string, 0, shown+2)
	lines = append(lines, "Licenses")
	for _, r := range rows[:shown] {
		ip := "unused"
		if r.ServerIP != nil && *r.ServerIP != "" {
			ip = *r.ServerIP
		}
		lines = append(lines, fmt.Sprintf("%s `%s` - %s - %s - IP: %s",
			statusMark(r.Active), r.Key, mention(r.Owner), expiryText(r.ExpiresAt, "never"), ip))
	}
	lines = append(lines, fmt.Sprintf("Showing %d of %d", shown, len(rows)))
	return Reply{Content: strings.Join(lines, "\n")}
}

func (d *Dispatcher) lookup(ctx context.Context, cmd Command) Reply {
	owner := cmd.option("user")
	if owner == "" {
		return Reply{Content: "Error: user is required"}
	}

	rows, err := d.gateway.Lookup(ctx, owner)
	if err != nil {
		return d.failure(ctx, err)
	}
	if len(rows) == 0 {
		return Reply{Content: fmt.Sprintf("No licenses found for %s.", mention(owner))}
	}

	lines := []string{fmt.Sprintf("Licenses for %s:", mention(owner))}
	for _, r := range rows {
		status := statusMark(r.Active)
		if !r.Active {
			status += " Revoked"
		}
		lines = append(lines, fmt.Sprintf("%s `%s` - expires: %s", status, r.Key, expiryText(r.ExpiresAt, "never")))
	}
	return Reply{Content: strings.Join(lines, "\n")}
}

func (d *Dispatcher) myLicense(ctx context.Context, cmd Command) Reply {
	if cmd.Caller.ID == "" {
		return Reply{Content: msgMyNone}
	}

	rows, err := d.gateway.Lookup(ctx, cmd.Caller.ID)
	if err != nil {
		return d.failure(ctx, err)
	}
	if len(rows) == 0 {
		return Reply{Content: msgMyNone}
	}

	lines := []string{"Your license(s):"}
	for _, r := range rows {
		if !r.Active {
			continue
		}
		lines = append(lines, fmt.Sprintf("`%s` - expires: %s", r.Key, expiryText(r.ExpiresAt, "never")))
	}
	if len(lines) == 1 {
		return Reply{Content: msgMyAllRevoked}
	}
	return Reply{Content: strings.Join(lines, "\n")}
}

func (d *Dispatcher) genKey(ctx context.Context, cmd Command) Reply {
	issued, err := d.gateway.GenerateKey(ctx, cmd.Caller.ID)
	if err != nil {
		return d.failure(ctx, err)
	}
	return Reply{Content: fmt.Sprintf("Generated key:\n```%s```", issued.Key)}
}

func (d *Dispatcher) failure(ctx context.Context, err error) Reply {
	msg := msgServerOffline
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		msg = typed.Message()
	}
	d.logg.Error(ctx, "command.failed", err)
	return Reply{Content: "Error: " + msg}
}
