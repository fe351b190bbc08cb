package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/facts"
	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/internal/template"
	"github.com/gnoswap-labs/rewrite/rewrite"
)

var (
	errorsAppend = selector.MustCompile(".send[message='<<'][arguments.size=1][receiver=.index[receiver=.send[message=errors][arguments.size=0]][arguments.size=1]]")
	errorsValues = selector.MustCompile(".send[receiver=.send[message=errors][arguments.size=0]][message=values][arguments.size=0]")
	errorsKeys   = selector.MustCompile(".send[receiver=.send[message=errors][arguments.size=0]][message=keys][arguments.size=0]")

	afterCommitOn     = selector.MustCompile(".send[receiver=nil][message=after_commit][arguments.size=2][arguments.1=.hash[on_value in (:create :update :destroy)]]")
	afterCommitOnList = selector.MustCompile(".send[receiver=nil][message=after_commit][arguments.size=2][arguments.1=.hash[on_value=.array]]")

	mailerClass  = selector.MustCompile(".class[parent_class=ActionMailer::Base]")
	mailerMethod = selector.MustCompile(".def")
	mailerHeader = selector.MustCompile(".send[receiver=nil][message in (recipients subject from cc bcc sent_on)][arguments.size=1]")
	contentType  = selector.MustCompile(".send[receiver=nil][message=content_type]")
	bodyHash     = selector.MustCompile(".send[receiver=nil][message=body][arguments.size=1][arguments.first=.hash]")
	deliverNow   = selector.MustCompile(`.send[message=~/\Adeliver_/]`)
	createMail   = selector.MustCompile(`.send[message=~/\Acreate_/]`)
	deliverMail  = selector.MustCompile(".send[message=deliver][arguments.size=1]")
)

type replacement struct {
	find pattern.Pattern
	with string
}

func replaceAll(list ...replacement) func(*rewrite.Instance) error {
	return func(i *rewrite.Instance) error {
		for _, r := range list {
			with := r.with
			err := i.With(r.find, func(m *rewrite.Instance) error { return m.ReplaceWith(with) })
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// book.errors[:title] << 'is not interesting enough.' => book.errors.add(:title, 'is not interesting enough.')
// book.errors.values => book.errors.map(&:message)
// book.errors.keys   => book.errors.map(&:attribute)
func deprecateErrorsAsHash() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "rails/deprecate_errors_as_hash",
		Description: "Stop using ActiveModel errors as a hash.",
		Guards:      []rewrite.Guard{rewrite.IfGem("activemodel", ">= 6.1")},
		Tasks: []rewrite.Task{{
			Files: []string{"**/*.rb"},
			Body: replaceAll(
				replacement{errorsAppend, "{{receiver.receiver}}.add({{receiver.arguments.0}}, {{arguments.0}})"},
				replacement{errorsValues, "{{receiver}}.map(&:message)"},
				replacement{errorsKeys, "{{receiver}}.map(&:attribute)"},
			),
		}},
	}
}

// after_commit :add_to_index_later, on: :create            => after_create_commit :add_to_index_later
// after_commit :save_to_index_later, on: [:create, :update] => after_save_commit :save_to_index_later
func convertAfterCommit() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "rails/convert_after_commit",
		Description: "Use after_create_commit and friends instead of after_commit with on.",
		Guards:      []rewrite.Guard{rewrite.IfGem("activerecord", ">= 5.0")},
		Tasks: []rewrite.Task{{
			Files: modelFiles,
			Body: func(i *rewrite.Instance) error {
				err := i.With(afterCommitOn, func(m *rewrite.Instance) error {
					return m.Group(func() error {
						return dropOn(m, "after_{{arguments.-1.on_value.to_value}}_commit")
					})
				})
				if err != nil {
					return err
				}
				return i.With(afterCommitOnList, func(m *rewrite.Instance) error {
					v, err := m.Get("arguments.-1.on_value.elements")
					if err != nil {
						return err
					}
					var events []string
					for _, n := range v.List() {
						if s, ok := n.Value(); ok {
							events = append(events, fmt.Sprint(s))
						}
					}
					sort.Strings(events)
					switch {
					case len(events) == 1:
						return m.Group(func() error { return dropOn(m, "after_"+events[0]+"_commit") })
					case strings.Join(events, ",") == "create,update":
						return m.Group(func() error { return dropOn(m, "after_save_commit") })
					}
					return nil
				})
			},
		}},
	}
}

func dropOn(m *rewrite.Instance, message string) error {
	if err := m.Replace("message", message); err != nil {
		return err
	}
	return m.Delete("arguments.-1.on_pair", rewrite.AndComma())
}

// mail() options in the order they are written, keyed by the Rails 2.3
// header call they come from.
var mailOptions = []struct{ header, option string }{
	{"recipients", "to"},
	{"subject", "subject"},
	{"from", "from"},
	{"cc", "cc"},
	{"bcc", "bcc"},
	{"sent_on", "date"},
}

// convertMailers moves Rails 2.3 mailers to the 3.0 API. Mailer methods are
// collected first so that only calls to real mailer methods are rewritten.
//
//	class Notifier < ActionMailer::Base
//	  def signup_notification(recipient)
//	    recipients      recipient.email_address_with_name
//	    subject         "New account information"
//	    body            :account => recipient
//	  end
//	end
//	Notifier.deliver_signup_notification(recipient)
//
// becomes
//
//	class Notifier < ActionMailer::Base
//	  def signup_notification(recipient)
//	    @account = recipient
//	    mail(:to => recipient.email_address_with_name, :subject => "New account information")
//	  end
//	end
//	Notifier.signup_notification(recipient).deliver
func convertMailers() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "rails/convert_mailers_2_3_to_3_0",
		Description: "Convert Rails 2.3 mailers to the Rails 3.0 API.",
		Guards:      []rewrite.Guard{rewrite.IfGem("rails", ">= 3.0")},
		Tasks: []rewrite.Task{
			{
				Phase:  rewrite.PhaseCollect,
				Files:  mailerFiles,
				Writes: []string{"mailers"},
				Body:   collectMailerMethods,
			},
			{
				Files: mailerFiles,
				Body: func(i *rewrite.Instance) error {
					return i.Within(mailerClass, func(c *rewrite.Instance) error {
						return c.Within(mailerMethod, convertMailerMethod)
					})
				},
			},
			{
				Files: appFiles,
				Reads: []string{"mailers"},
				Body:  convertMailerCalls,
			},
		},
	}
}

func collectMailerMethods(i *rewrite.Instance) error {
	return i.Within(mailerClass, func(c *rewrite.Instance) error {
		class, err := c.Render("{{name}}")
		if err != nil {
			return err
		}
		return c.Within(mailerMethod, func(d *rewrite.Instance) error {
			if !d.Exists(mailerHeader) {
				return nil
			}
			name, err := d.Render("{{name}}")
			if err != nil {
				return err
			}
			return d.Collect("mailers", class, name)
		})
	})
}

func convertMailerMethod(d *rewrite.Instance) error {
	headers := make(map[string]string)
	err := d.With(mailerHeader, func(h *rewrite.Instance) error {
		name, err := h.Render("{{message}}")
		if err != nil {
			return err
		}
		value, err := h.Render("{{arguments.first}}")
		if err != nil {
			return err
		}
		headers[name] = value
		return nil
	})
	if err != nil || len(headers) == 0 {
		return err
	}

	var args []string
	for _, o := range mailOptions {
		if v, ok := headers[o.header]; ok {
			args = append(args, ":"+o.option+" => "+v)
		}
	}
	if err := d.Append(template.Escape("mail(" + strings.Join(args, ", ") + ")")); err != nil {
		return err
	}
	remove := func(h *rewrite.Instance) error { return h.Remove() }
	if err := d.With(mailerHeader, remove); err != nil {
		return err
	}
	if err := d.With(contentType, remove); err != nil {
		return err
	}
	return d.With(bodyHash, func(b *rewrite.Instance) error {
		var lines []string
		err := b.Goto("arguments.first.pairs", func(p *rewrite.Instance) error {
			line, err := p.Render("@{{key.to_value}} = {{value}}")
			if err != nil {
				return err
			}
			lines = append(lines, line)
			return nil
		})
		if err != nil {
			return err
		}
		return b.ReplaceWith(template.Escape(strings.Join(lines, "\n")))
	})
}

func convertMailerCalls(i *rewrite.Instance) error {
	mailers, err := i.Facts("mailers")
	if err != nil {
		return err
	}
	// Notifier.deliver_signup_notification(recipient) => Notifier.signup_notification(recipient).deliver
	err = i.With(deliverNow, func(m *rewrite.Instance) error {
		return renameMailerCall(m, mailers, "deliver_", "{{receiver}}.%s({{arguments}}).deliver")
	})
	if err != nil {
		return err
	}
	// Notifier.create_signup_notification(recipient) => Notifier.signup_notification(recipient)
	err = i.With(createMail, func(m *rewrite.Instance) error {
		return renameMailerCall(m, mailers, "create_", "{{receiver}}.%s({{arguments}})")
	})
	if err != nil {
		return err
	}
	// Notifier.deliver(message) => message.deliver
	return i.With(deliverMail, func(m *rewrite.Instance) error {
		receiver, err := m.Render("{{receiver}}")
		if err != nil {
			return err
		}
		if len(mailers.Get(receiver)) == 0 {
			return nil
		}
		return m.ReplaceWith("{{arguments}}.{{message}}")
	})
}

func renameMailerCall(m *rewrite.Instance, mailers facts.Table, prefix, format string) error {
	receiver, err := m.Render("{{receiver}}")
	if err != nil {
		return err
	}
	message, err := m.Render("{{message}}")
	if err != nil {
		return err
	}
	method := strings.TrimPrefix(message, prefix)
	if !mailers.Has(receiver, method) {
		return nil
	}
	return m.ReplaceWith(fmt.Sprintf(format, method))
}
