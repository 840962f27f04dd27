package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/restore"
	"github.com/and161185/logistics-keeper/internal/service"
	"github.com/and161185/logistics-keeper/internal/syncer"
)

// dispatch runs one command against the wired application.
func (e *env) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "version":
		fmt.Fprintf(e.out, "logictl %s (%s)\n", version, buildDate)
		return nil
	case "login":
		return e.cmdLogin(ctx, args)
	case "logout":
		if err := e.auth.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "ok")
		return nil
	case "whoami":
		s, err := e.auth.Current(ctx)
		if err != nil {
			return err
		}
		printJSON(e.out, s.User)
		return nil
	case "order":
		return e.cmdOrder(ctx, args)
	case "user":
		return e.cmdUser(ctx, args)
	case "supplier":
		if len(args) != 1 || args[0] != "list" {
			return errUsage
		}
		if _, err := e.actor(ctx); err != nil {
			return err
		}
		printJSON(e.out, e.app.Snapshot().Suppliers)
		return nil
	case "backup":
		return e.cmdBackup(ctx, args)
	case "restore":
		return e.cmdRestore(ctx, args)
	case "sync":
		return e.cmdSync(ctx, args)
	case "shell":
		return e.cmdShell(ctx)
	}
	return errUsage
}

func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.err)
	return fs
}

func (e *env) actor(ctx context.Context) (model.User, error) {
	s, err := e.auth.Current(ctx)
	if err != nil {
		return model.User{}, err
	}
	return s.User, nil
}

func (e *env) admin(ctx context.Context) (model.User, error) {
	u, err := e.actor(ctx)
	if err != nil {
		return u, err
	}
	if u.Role != model.RoleAdmin {
		return u, errs.ErrInsufficientRole
	}
	return u, nil
}

func (e *env) confirm(question string) bool {
	fmt.Fprintf(e.out, "%s [y/N]: ", question)
	line, _ := e.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (e *env) cmdLogin(ctx context.Context, args []string) error {
	fs := e.flags("login")
	id := fs.String("u", "", "user id")
	pw := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *pw == "" {
		return fmt.Errorf("%w: need -u and -p", errs.ErrValidation)
	}
	s, err := e.auth.Login(ctx, *id, *pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "ok, logged in as %s (%s)\n", s.User.ID, s.User.Role)
	return nil
}

func (e *env) cmdOrder(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	actor, err := e.actor(ctx)
	if err != nil {
		return err
	}
	sub, args := args[0], args[1:]
	fs := e.flags("order " + sub)

	switch sub {
	case "add":
		var d service.OrderDraft
		fs.StringVar(&d.Requester, "for", "", "requester id (Admin/Manager only)")
		fs.StringVar(&d.ProjectCode, "project-code", "", "project code")
		fs.StringVar(&d.ProjectName, "project-name", "", "project name")
		fs.StringVar(&d.PickupDate, "pickup-date", "", "pickup date")
		fs.StringVar(&d.DeliveryDate, "delivery-date", "", "delivery date")
		fs.StringVar(&d.PickupWarehouse, "from", "", "pickup warehouse")
		fs.StringVar(&d.DeliveryWarehouse, "to", "", "delivery warehouse")
		fs.StringVar(&d.VehicleType, "vehicle", "", "vehicle type")
		fs.StringVar(&d.GoodsType, "goods", "", "goods type")
		fs.StringVar(&d.Supplier, "supplier", "", "supplier")
		fs.StringVar(&d.Notes, "notes", "", "notes")
		fs.IntVar(&d.Quantity, "qty", 1, "quantity")
		fs.BoolVar(&d.IsUrgent, "urgent", false, "urgent order")
		if err := fs.Parse(args); err != nil {
			return err
		}
		o, err := e.orders.Create(ctx, actor, d)
		if err != nil {
			return err
		}
		printJSON(e.out, o)

	case "assign":
		id := fs.String("id", "", "order id")
		supplier := fs.String("supplier", "", "supplier")
		if err := fs.Parse(args); err != nil {
			return err
		}
		o, err := e.orders.AssignSupplier(ctx, actor, *id, *supplier)
		if err != nil {
			return err
		}
		printJSON(e.out, o)

	case "rm":
		id := fs.String("id", "", "order id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := e.orders.Delete(ctx, actor, *id); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "ok")

	case "list":
		var f service.Filter
		fs.StringVar(&f.Requester, "requester", "", "requester name contains")
		fs.StringVar(&f.Supplier, "supplier", "", "supplier")
		fs.StringVar(&f.From, "from", "", "created on or after (YYYY-MM-DD)")
		fs.StringVar(&f.To, "to", "", "created on or before (YYYY-MM-DD)")
		fs.StringVar(&f.Search, "q", "", "search text")
		if err := fs.Parse(args); err != nil {
			return err
		}
		list, err := e.orders.List(actor, f)
		if err != nil {
			return err
		}
		printJSON(e.out, list)

	default:
		return errUsage
	}
	return nil
}

func (e *env) cmdUser(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	actor, err := e.actor(ctx)
	if err != nil {
		return err
	}
	sub, args := args[0], args[1:]
	fs := e.flags("user " + sub)

	switch sub {
	case "add":
		var d service.UserDraft
		role := fs.String("role", string(model.RoleRequester), "Admin, Manager or Requester")
		fs.StringVar(&d.ID, "id", "", "user id")
		fs.StringVar(&d.Password, "p", "", "password")
		fs.StringVar(&d.Name, "name", "", "display name")
		fs.StringVar(&d.Email, "email", "", "email")
		fs.StringVar(&d.Address, "address", "", "address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		d.Role = model.Role(*role)
		u, err := e.users.Create(ctx, actor, d)
		if err != nil {
			return err
		}
		printJSON(e.out, u)

	case "edit":
		id := fs.String("id", "", "user id (default: yourself)")
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email")
		address := fs.String("address", "", "address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		var upd service.UserUpdate
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				upd.Name = name
			case "email":
				upd.Email = email
			case "address":
				upd.Address = address
			}
		})
		if *id == "" {
			*id = actor.ID
		}
		u, err := e.users.Update(ctx, actor, *id, upd)
		if err != nil {
			return err
		}
		printJSON(e.out, u)

	case "rm":
		id := fs.String("id", "", "user id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := e.users.Delete(ctx, actor, *id); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "ok")

	case "list":
		list, err := e.users.List(actor)
		if err != nil {
			return err
		}
		printJSON(e.out, list)

	default:
		return errUsage
	}
	return nil
}

func (e *env) cmdBackup(ctx context.Context, args []string) error {
	if _, err := e.admin(ctx); err != nil {
		return err
	}
	fs := e.flags("backup")
	out := fs.String("out", ".", "target directory, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	snap := e.app.Snapshot()
	if *out == "-" {
		return restore.Export(snap, e.out)
	}
	path, err := restore.ExportFile(snap, *out, e.app.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, path)
	return nil
}

func (e *env) cmdRestore(ctx context.Context, args []string) error {
	if _, err := e.admin(ctx); err != nil {
		return err
	}
	fs := e.flags("restore")
	path := fs.String("file", "", "backup file ('-'=stdin)")
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("%w: need -file", errs.ErrValidation)
	}
	raw, err := restore.ReadFile(*path)
	if err != nil {
		return err
	}
	staged, err := e.restore.Stage(raw)
	if err != nil {
		return err
	}
	return e.applyStaged(ctx, staged, *yes)
}

// applyStaged asks for confirmation and commits the staged restore. The session is
// cleared by the commit.
func (e *env) applyStaged(ctx context.Context, staged model.AppState, yes bool) error {
	q := fmt.Sprintf("Restore %d orders, %d users and %d suppliers? Current data will be overwritten and you will be logged out.",
		len(staged.Orders), len(staged.Users), len(staged.Suppliers))
	if !yes && !e.confirm(q) {
		e.restore.Cancel()
		fmt.Fprintln(e.out, "cancelled")
		return nil
	}
	if _, err := e.restore.Confirm(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Data restored. Please log in again.")
	return nil
}

func (e *env) cmdSync(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	sub, args := args[0], args[1:]
	saved := e.sync.Credentials()
	fs := e.flags("sync " + sub)
	token := fs.String("token", firstNonEmpty(saved.Token, os.Getenv("LOGI_SYNC_TOKEN")), "remote API token (env LOGI_SYNC_TOKEN)")
	doc := fs.String("doc", saved.DocumentID, "remote document id")
	remember := fs.Bool("remember", !saved.Empty(), "remember credentials and enable automatic sync")

	switch sub {
	case "push":
		if _, err := e.actor(ctx); err != nil {
			return err
		}
		if err := fs.Parse(args); err != nil {
			return err
		}
		id, err := e.sync.Sync(ctx, syncer.SyncRequest{Token: *token, DocumentID: *doc, Remember: *remember})
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, id)

	case "pull":
		yes := fs.Bool("yes", false, "skip confirmation")
		if _, err := e.admin(ctx); err != nil {
			return err
		}
		if err := fs.Parse(args); err != nil {
			return err
		}
		staged, err := e.sync.Load(ctx, syncer.SyncRequest{Token: *token, DocumentID: *doc, Remember: *remember})
		if err != nil {
			return err
		}
		return e.applyStaged(ctx, staged, *yes)

	case "status":
		metrics := fs.Bool("metrics", false, "include sync counters")
		if err := fs.Parse(args); err != nil {
			return err
		}
		creds := e.sync.Credentials()
		out := map[string]any{
			"status":     e.sync.Status(),
			"autoSync":   !creds.Empty(),
			"documentId": creds.DocumentID,
			"pending":    e.sync.Pending(),
		}
		if *metrics {
			m, err := e.metrics()
			if err != nil {
				return err
			}
			out["metrics"] = m
		}
		printJSON(e.out, out)

	default:
		return errUsage
	}
	return nil
}

// metrics flattens the registry into name{labels} -> value.
func (e *env) metrics() (map[string]float64, error) {
	mfs, err := e.reg.Gather()
	if err != nil {
		return nil, err
	}
	out := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[name] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[name+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
