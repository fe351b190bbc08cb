package rules

import (
	"fmt"
	"strings"

	"github.com/gnoswap-labs/rewrite/internal/pattern"
	"github.com/gnoswap-labs/rewrite/internal/selector"
	"github.com/gnoswap-labs/rewrite/rewrite"
)

var (
	bangStub        = selector.MustCompile(".send[message in (stub! unstub!)]")
	anyNumberOfTime = selector.MustCompile(".send[message=any_number_of_times][arguments.size=0][receiver=.send[message=stub][arguments.first.node_type!=hash]]")
	atLeastZero     = selector.MustCompile(".send[message=at_least][arguments=(0)][receiver=.send[message=stub][arguments.first.node_type!=hash]]")
	plainStub       = selector.MustCompile(".send[message=stub][arguments.first.node_type!=hash]")
	anyInstance     = selector.MustCompile(".send[message=any_instance]")

	stubChain      = selector.MustCompile(".send[message=stub_chain]")
	stubHash       = selector.MustCompile(".send[message=stub][arguments.first=.hash]")
	andReturnBlock = selector.MustCompile(".send[receiver=.send[message=allow]][message=to][arguments.first=.block[caller=.send[message=and_return][arguments.size=0]]]")
	andReturnEmpty = selector.MustCompile(".send[receiver=.send[message=allow]][message=to][arguments.first=.send[message=and_return][arguments.size=0]]")

	beClose = selector.MustCompile(".send[message=to][arguments.first=.send[message=be_close][arguments.size=2]]")
)

// stubWrappers are the 2.x modifiers that become meaningless once a stub is
// written with allow().
var stubWrappers = []pattern.Pattern{
	selector.MustCompile(".send[message=any_number_of_times]"),
	selector.MustCompile(".send[message=at_least][arguments=(0)]"),
}

// methodStub converts old rspec method stubs.
//
//	obj.stub!(:message)                      => obj.stub(:message)
//	obj.stub(:message).any_number_of_times   => allow(obj).to receive(:message)
//	obj.stub(:message)                       => allow(obj).to receive(:message)
//	Klass.any_instance.stub(:message)        => allow_any_instance_of(Klass).to receive(:message)
//	obj.stub_chain(:foo, :bar)               => allow(obj).to receive_message_chain(:foo, :bar)
//	obj.stub(:foo => 1, :bar => 2)           => allow(obj).to receive_messages(:foo => 1, :bar => 2)
//	allow(obj).to receive(:message).and_return { 1 } => allow(obj).to receive(:message) { 1 }
//	allow(obj).to receive(:message).and_return       => allow(obj).to receive(:message)
func methodStub() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "rspec/method_stub",
		Description: "Convert rspec method stubs to allow().to receive().",
		Guards:      []rewrite.Guard{rewrite.IfGem("rspec-core", ">= 2.14")},
		Tasks: []rewrite.Task{
			{
				Files: rspecFiles,
				Body:  convertStubs,
			},
			{
				Files:  rspecFiles,
				Guards: []rewrite.Guard{rewrite.IfGem("rspec-core", ">= 3.0")},
				Body:   convertStubs3,
			},
		},
	}
}

func convertStubs(i *rewrite.Instance) error {
	err := i.With(bangStub, func(m *rewrite.Instance) error {
		message, err := m.Render("{{message}}")
		if err != nil {
			return err
		}
		return m.Replace("message", strings.TrimSuffix(message, "!"))
	})
	if err != nil {
		return err
	}
	for _, p := range []pattern.Pattern{anyNumberOfTime, atLeastZero} {
		err := i.With(p, func(m *rewrite.Instance) error {
			return allowStub(m, "receiver.", "receive")
		})
		if err != nil {
			return err
		}
	}
	return i.With(plainStub, func(m *rewrite.Instance) error {
		if parent := m.Scope().Parent(); parent != nil {
			for _, w := range stubWrappers {
				if pattern.Matches(parent, w) {
					return nil
				}
			}
		}
		return allowStub(m, "", "receive")
	})
}

// allowStub rewrites the match into allow(...).to matcher(...). at is the
// path prefix of the stub call inside the match.
func allowStub(m *rewrite.Instance, at, matcher string) error {
	if m.Exists(anyInstance) {
		return m.ReplaceWith(fmt.Sprintf("allow_any_instance_of({{%sreceiver.receiver}}).to %s({{%sarguments}})", at, matcher, at))
	}
	return m.ReplaceWith(fmt.Sprintf("allow({{%sreceiver}}).to %s({{%sarguments}})", at, matcher, at))
}

func convertStubs3(i *rewrite.Instance) error {
	err := i.With(stubChain, func(m *rewrite.Instance) error {
		return allowStub(m, "", "receive_message_chain")
	})
	if err != nil {
		return err
	}
	return replaceAll(
		replacement{stubHash, "allow({{receiver}}).to receive_messages({{arguments}})"},
		replacement{andReturnBlock, "{{receiver}}.to {{arguments.first.caller.receiver}} { {{arguments.first.body}} }"},
		replacement{andReturnEmpty, "{{receiver}}.to {{arguments.first.receiver}}"},
	)(i)
}

// expect(x).to be_close(0.333, 0.001) => expect(x).to be_within(0.001).of(0.333)
func beCloseToBeWithin() *rewrite.Rule {
	return &rewrite.Rule{
		Name:        "rspec/be_close_to_be_within",
		Description: "Convert the be_close matcher to be_within.",
		Guards:      []rewrite.Guard{rewrite.IfGem("rspec-core", ">= 2.1")},
		Tasks: []rewrite.Task{{
			Files: rspecFiles,
			Body: replaceEach(beClose, func(m *rewrite.Instance) error {
				return m.Replace("arguments", "be_within({{arguments.first.arguments.last}}).of({{arguments.first.arguments.first}})")
			}),
		}},
	}
}
