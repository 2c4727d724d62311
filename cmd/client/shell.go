package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atinyakov/mecsync/internal/client/api"
	"github.com/atinyakov/mecsync/internal/client/poller"
	"github.com/atinyakov/mecsync/internal/client/prompt"
	"github.com/atinyakov/mecsync/internal/client/query"
	"github.com/atinyakov/mecsync/internal/models"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session over the shared document",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := newShell(a, cmd.InOrStdin())
		done := s.startPolling(ctx)
		defer done()
		return s.run(ctx)
	},
}

const shellHelp = `Comandos:
  login <email>            entrar
  logout | whoami
  parts [filtro]           listar peças (ex.: parts status == "Sem Estoque")
  part-add | part-status <id> | part-rm <id>
  orders [filtro]          listar pedidos
  order-add | order-status <id> | order-items <id>
  users | user-add | user-rm <id>
  fleet | vehicle-add | vehicle-rm <prefixo>
  history | sales
  diagrams | diagram-add | diagram-rm <id>
  catalog | brands | brand-add <marca>
  settings | maintenance on|off | min-version <versão> | gateway
  logs [n] | note <texto>
  sync                     recarregar o documento
  exit`

var builtinCategories = []string{
	models.CategoryEngine, models.CategoryBrakes, models.CategorySuspension,
	models.CategoryBody, models.CategoryElectrical, models.CategoryTransmission,
	models.CategoryDifferential, models.CategoryAccessories, models.CategoryOther,
}

var maintenanceSystems = []string{
	string(models.SystemEngine), string(models.SystemTransmission), string(models.SystemBrakes),
	string(models.SystemSuspension), string(models.SystemElectrical), string(models.SystemAC),
	string(models.SystemBodywork), string(models.SystemTires), string(models.SystemOther),
}

var orderStatuses = []string{
	string(models.OrderPending), string(models.OrderQuoting), string(models.OrderPurchased),
	string(models.OrderInTransit), string(models.OrderDelivered), string(models.OrderCanceled),
	string(models.OrderInstalled), string(models.OrderRegistrationRequest), string(models.OrderDataCorrection),
}

var userRoles = []string{
	string(models.RoleAdmin), string(models.RoleStock), string(models.RolePurchasing),
	string(models.RoleMechanic), string(models.RoleSales),
}

var partStatuses = []string{
	string(models.PartInStock), string(models.PartLowStock),
	string(models.PartOutOfStock), string(models.PartDiscontinued),
}

type shell struct {
	app *app
	api *api.Client
	p   *prompt.Prompter
	out io.Writer
}

func newShell(a *app, in io.Reader) *shell {
	return &shell{app: a, api: a.api, p: prompt.New(in, a.out), out: a.out}
}

// startPolling refreshes the document in the background and announces the
// logged-in user's orders as they get delivered. The returned func stops it.
func (s *shell) startPolling(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	events, err := s.app.channel.Listen(ctx)
	if err != nil {
		s.app.log.Warn("change notifications unavailable")
	}
	p := poller.New(s.api,
		poller.WithInterval(s.app.cfg.PollInterval.Std()),
		poller.WithEvents(events),
		poller.WithLogger(s.app.log),
		poller.OnDelivered(s.requesterID, func(orders []models.Order) {
			for _, o := range orders {
				successColor.Fprintf(s.out, "\n✅ Pedido #%s disponível!\n", o.ID)
			}
		}),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *shell) requesterID() string {
	if u := s.api.Session(); u != nil {
		return u.ID
	}
	return ""
}

func (s *shell) run(ctx context.Context) error {
	s.app.checkVersion(ctx)
	fmt.Fprintln(s.out, "Digite 'help' para a lista de comandos.")
	for {
		line, err := s.p.Ask("mec")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			fmt.Fprintln(s.out, "Bye")
			return nil
		}
		if err := s.exec(ctx, args); err != nil {
			s.report(err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *shell) report(err error) {
	switch {
	case errors.Is(err, api.ErrMaintenanceMode):
		alertColor.Fprintln(s.out, "Sistema em manutenção. Apenas administradores podem entrar.")
	case errors.Is(err, api.ErrInvalidCredentials):
		alertColor.Fprintln(s.out, "E-mail ou senha inválidos.")
	default:
		alertColor.Fprintf(s.out, "Erro: %v\n", err)
	}
}

func (s *shell) exec(ctx context.Context, args []string) error {
	rest := strings.Join(args[1:], " ")
	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return nil
	case "login":
		return s.login(ctx, args)
	case "logout":
		s.api.Auth.Logout()
		fmt.Fprintln(s.out, "Sessão encerrada")
		return nil
	case "whoami":
		if u := s.api.Session(); u != nil {
			fmt.Fprintf(s.out, "%s <%s> %s\n", u.Name, u.Email, u.Role)
		} else {
			fmt.Fprintln(s.out, "Ninguém logado")
		}
		return nil
	case "parts":
		return s.listParts(ctx, rest)
	case "part-add":
		return s.addPart(ctx)
	case "part-status":
		return s.withID(args, func(id string) error { return s.partStatus(ctx, id) })
	case "part-rm":
		return s.withID(args, func(id string) error { return s.confirmed("Excluir peça "+id, func() error { return s.api.Parts.Delete(ctx, id) }) })
	case "orders":
		return s.listOrders(ctx, rest)
	case "order-add":
		return s.addOrder(ctx)
	case "order-status":
		return s.withID(args, func(id string) error { return s.orderStatus(ctx, id) })
	case "order-items":
		return s.withID(args, func(id string) error { return s.orderItems(ctx, id) })
	case "users":
		users, err := s.api.Users.List(ctx)
		for _, u := range users {
			fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
		}
		return err
	case "user-add":
		return s.addUser(ctx)
	case "user-rm":
		return s.withID(args, func(id string) error { return s.confirmed("Excluir usuário "+id, func() error { return s.api.Users.Delete(ctx, id) }) })
	case "fleet":
		vehicles, err := s.api.Fleet.List(ctx)
		for _, v := range vehicles {
			fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\n", v.Prefix, v.Plate, v.Model, v.Year)
		}
		return err
	case "vehicle-add":
		v, err := s.p.Vehicle()
		if err != nil {
			return err
		}
		_, err = s.api.Fleet.Create(ctx, v)
		return err
	case "vehicle-rm":
		return s.withID(args, func(prefix string) error { return s.api.Fleet.Delete(ctx, prefix) })
	case "history":
		records, err := s.api.History.List(ctx)
		for _, r := range records {
			fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\n", r.Date, r.VehicleInfo.Prefix, r.MaintenanceSystem, r.MechanicName)
		}
		return err
	case "sales":
		sales, err := s.api.Sales.List(ctx)
		for _, r := range sales {
			fmt.Fprintf(s.out, "%s\t%s\t%.2f\t%s\n", r.Date, r.CustomerName, r.TotalValue, r.SellerName)
		}
		return err
	case "diagrams":
		diagrams, err := s.api.Diagrams.List(ctx)
		for _, d := range diagrams {
			fmt.Fprintf(s.out, "%s\t%s\t%s\t%d hotspots\n", d.ID, d.Name, d.System, len(d.Hotspots))
		}
		return err
	case "diagram-add":
		return s.addDiagram(ctx)
	case "diagram-rm":
		return s.withID(args, func(id string) error { return s.confirmed("Excluir diagrama "+id, func() error { return s.api.Diagrams.Delete(ctx, id) }) })
	case "catalog":
		cfg, err := s.api.Catalog.GetConfig(ctx)
		if err != nil {
			return err
		}
		return s.printJSON(cfg)
	case "brands":
		brands, err := s.api.Catalog.Brands(ctx)
		fmt.Fprintln(s.out, strings.Join(brands, ", "))
		return err
	case "brand-add":
		if rest == "" {
			fmt.Fprintln(s.out, "Usage: brand-add <marca>")
			return nil
		}
		cfg, err := s.api.Catalog.GetConfig(ctx)
		if err != nil {
			return err
		}
		cfg.CustomBrands = append(cfg.CustomBrands, rest)
		_, err = s.api.Catalog.UpdateConfig(ctx, cfg)
		return err
	case "settings":
		st, err := s.api.System.GetSettings(ctx, true)
		if err != nil {
			return err
		}
		st.InternalSystemPassword = strings.Repeat("*", len(st.InternalSystemPassword))
		return s.printJSON(st)
	case "maintenance":
		if rest != "on" && rest != "off" {
			fmt.Fprintln(s.out, "Usage: maintenance on|off")
			return nil
		}
		_, err := s.api.System.UpdateSettings(ctx, api.SettingsPatch{MaintenanceMode: api.Ptr(rest == "on")})
		return err
	case "min-version":
		if rest == "" {
			fmt.Fprintln(s.out, "Usage: min-version <versão>")
			return nil
		}
		_, err := s.api.System.UpdateSettings(ctx, api.SettingsPatch{MinAppVersion: api.Ptr(rest)})
		return err
	case "gateway":
		pw, err := s.p.Ask("Senha do gateway")
		if err != nil {
			return err
		}
		ok, err := s.api.System.VerifyGateway(ctx, pw)
		if err != nil {
			return err
		}
		if ok {
			successColor.Fprintln(s.out, "Acesso liberado")
		} else {
			alertColor.Fprintln(s.out, "Senha incorreta")
		}
		return nil
	case "logs":
		return s.listLogs(ctx, rest)
	case "note":
		if rest == "" {
			fmt.Fprintln(s.out, "Usage: note <texto>")
			return nil
		}
		actor, role := "Usuário Ativo", "System"
		if u := s.api.Session(); u != nil {
			actor, role = u.Name, string(u.Role)
		}
		return s.api.Logs.Create(ctx, models.SystemLog{
			ActorName: actor, ActorRole: role,
			ActionType: models.ActionSystem, Module: models.ModuleSystem,
			Description: rest,
		})
	case "sync":
		snap, err := s.api.Snapshot(ctx, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Revisão %d: %d peças, %d pedidos, %d usuários, %d veículos, %d registros de log\n",
			snap.Revision, len(snap.Parts), len(snap.Orders), len(snap.Users), len(snap.Vehicles), len(snap.Logs))
		return nil
	}
	fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	return nil
}

func (s *shell) withID(args []string, fn func(id string) error) error {
	if len(args) < 2 {
		fmt.Fprintf(s.out, "Usage: %s <id>\n", args[0])
		return nil
	}
	return fn(args[1])
}

func (s *shell) confirmed(label string, fn func() error) error {
	ok, err := s.p.Confirm(label)
	if err != nil || !ok {
		return err
	}
	return fn()
}

func (s *shell) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, string(b))
	return nil
}

func (s *shell) login(ctx context.Context, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: login <email>")
		return nil
	}
	password, err := s.p.Ask("Senha")
	if err != nil {
		return err
	}
	u, err := s.api.Auth.Login(ctx, args[1], password)
	if err != nil {
		return err
	}
	successColor.Fprintf(s.out, "Bem-vindo, %s (%s)\n", u.Name, u.Role)
	return nil
}

func (s *shell) listParts(ctx context.Context, filter string) error {
	parts, err := s.api.Parts.List(ctx)
	if err != nil {
		return err
	}
	if parts, err = query.Filter(parts, filter); err != nil {
		return err
	}
	for _, p := range parts {
		price := "-"
		if p.Price != nil {
			price = strconv.FormatFloat(*p.Price, 'f', 2, 64)
		}
		fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.InternalCode, p.Name, p.Status, price)
	}
	return nil
}

func (s *shell) addPart(ctx context.Context) error {
	cfg, err := s.api.Catalog.GetConfig(ctx)
	if err != nil {
		return err
	}
	categories := slices.Concat(builtinCategories, cfg.CustomCategories)
	part, err := s.p.Part(categories)
	if err != nil {
		return err
	}
	part, err = s.api.Parts.Create(ctx, part)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Peça %s cadastrada\n", part.ID)
	return nil
}

func (s *shell) partStatus(ctx context.Context, id string) error {
	st, err := s.p.Choose("Status", partStatuses)
	if err != nil {
		return err
	}
	status := models.PartStatus(st)
	_, err = s.api.Parts.Update(ctx, id, api.PartPatch{Status: &status})
	return err
}

func (s *shell) listOrders(ctx context.Context, filter string) error {
	orders, err := s.api.Orders.List(ctx)
	if err != nil {
		return err
	}
	if orders, err = query.Filter(orders, filter); err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\t%d itens\n", o.ID, o.Status, o.Priority, o.RequesterName, len(o.Items))
	}
	return nil
}

// withPartNames fills the name and code of each item from the inventory.
func (s *shell) withPartNames(ctx context.Context, items []models.OrderItem) ([]models.OrderItem, error) {
	parts, err := s.api.Parts.List(ctx)
	if err != nil {
		return nil, err
	}
	for i, it := range items {
		if j := slices.IndexFunc(parts, func(p models.Part) bool { return p.ID == it.PartID }); j >= 0 {
			items[i].PartName = parts[j].Name
			items[i].InternalCode = parts[j].InternalCode
		}
	}
	return items, nil
}

func (s *shell) addOrder(ctx context.Context) error {
	items, err := s.p.Items()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(s.out, "Pedido sem itens, cancelado")
		return nil
	}
	if items, err = s.withPartNames(ctx, items); err != nil {
		return err
	}
	priority := models.PriorityNormal
	if urgent, err := s.p.Confirm("Urgente"); err != nil {
		return err
	} else if urgent {
		priority = models.PriorityUrgent
	}

	var vehicle *models.Vehicle
	prefix, err := s.p.Ask("Prefixo do veículo (vazio para nenhum)")
	if err != nil {
		return err
	}
	if prefix != "" {
		fleet, err := s.api.Fleet.List(ctx)
		if err != nil {
			return err
		}
		if i := slices.IndexFunc(fleet, func(v models.Vehicle) bool { return v.Prefix == prefix }); i >= 0 {
			vehicle = &fleet[i]
		} else {
			fmt.Fprintf(s.out, "Veículo %s não encontrado na frota\n", prefix)
		}
	}
	system, err := s.p.Choose("Sistema", maintenanceSystems)
	if err != nil {
		return err
	}
	notes, err := s.p.Ask("Tipo de manutenção")
	if err != nil {
		return err
	}

	o := models.NewRequisition(s.api.Session(), items, priority, vehicle, models.MaintenanceSystem(system), notes, time.Now())
	o, err = s.api.Orders.Create(ctx, o)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Pedido %s criado\n", o.ID)
	return nil
}

func (s *shell) orderStatus(ctx context.Context, id string) error {
	st, err := s.p.Choose("Novo status", orderStatuses)
	if err != nil {
		return err
	}
	next := models.OrderStatus(st)
	orders, err := s.api.Orders.List(ctx)
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(orders, func(o models.Order) bool { return o.ID == id }); i >= 0 && !orders[i].Status.CanTransitionTo(next) {
		fmt.Fprintf(s.out, "Aviso: %s → %s está fora do fluxo\n", orders[i].Status, next)
	}
	_, err = s.api.Orders.UpdateStatus(ctx, id, next)
	return err
}

func (s *shell) orderItems(ctx context.Context, id string) error {
	items, err := s.p.Items()
	if err != nil {
		return err
	}
	if items, err = s.withPartNames(ctx, items); err != nil {
		return err
	}
	_, err = s.api.Orders.UpdateItems(ctx, id, items)
	return err
}

func (s *shell) addUser(ctx context.Context) error {
	var (
		u   models.User
		err error
	)
	if u.Name, err = s.p.Ask("Nome"); err != nil {
		return err
	}
	if u.Email, err = s.p.Ask("E-mail"); err != nil {
		return err
	}
	if u.Password, err = s.p.Ask("Senha"); err != nil {
		return err
	}
	role, err := s.p.Choose("Perfil", userRoles)
	if err != nil {
		return err
	}
	u.Role = models.UserRole(role)
	if u.Department, err = s.p.Ask("Departamento"); err != nil {
		return err
	}
	u, err = s.api.Users.Create(ctx, u)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Usuário %s criado\n", u.ID)
	return nil
}

func (s *shell) addDiagram(ctx context.Context) error {
	var (
		d   models.AssemblyDiagram
		err error
	)
	if d.Name, err = s.p.Ask("Nome"); err != nil {
		return err
	}
	system, err := s.p.Choose("Sistema", maintenanceSystems)
	if err != nil {
		return err
	}
	d.System = models.MaintenanceSystem(system)
	if d.ImageURL, err = s.p.Ask("URL da imagem"); err != nil {
		return err
	}
	if d.Hotspots, err = s.p.Hotspots(); err != nil {
		return err
	}
	d, err = s.api.Diagrams.Create(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Diagrama %s criado\n", d.ID)
	return nil
}

func (s *shell) listLogs(ctx context.Context, arg string) error {
	n := 20
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			fmt.Fprintln(s.out, "Usage: logs [n]")
			return nil
		}
		n = v
	}
	logs, err := s.api.Logs.List(ctx)
	if err != nil {
		return err
	}
	for _, l := range logs[:min(n, len(logs))] {
		fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\n", l.Timestamp, l.ActorName, l.ActionType, l.Description)
	}
	return nil
}
