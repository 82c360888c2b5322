package engine

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/provider/providertest"
)

var _ = Describe("Stack lifecycle", func() {
	var (
		f   *fixture
		ctx context.Context
	)

	BeforeEach(func() {
		f = newFixture()
		ctx = context.Background()
	})

	actions := func(p *plan.Plan) map[string]plan.Action {
		out := map[string]plan.Action{}
		for _, c := range p.Changes {
			out[c.Address] = c.Action
		}
		return out
	}

	Context("on an empty state", func() {
		It("creates every instance in dependency order", func() {
			e, err := f.engine(layeredStack)
			Expect(err).NotTo(HaveOccurred())

			p, err := e.Plan(ctx, PlanOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SummaryLine()).To(Equal("Plan: 4 to add, 0 to change, 0 to destroy."))
			Expect(p.Change("test_thing.vm").Unknown).To(ContainElements("ref", "items", "id"))
			Expect(p.Change("test_thing.sub[1]").After).To(HaveKeyWithValue("name", "sub-1"))

			Expect(e.Apply(ctx, p)).To(Succeed())

			created := f.addressesFor(providertest.OpCreate)
			Expect(created).To(HaveLen(4))
			Expect(created[0]).To(Equal("test_thing.net"))
			Expect(created[3]).To(Equal("test_thing.vm"))
			Expect(f.provider.Configured()).To(HaveKeyWithValue("endpoint", "mem://z1"))

			st := f.state()
			Expect(st.Addresses()).To(Equal([]string{"test_thing.net", "test_thing.sub[0]", "test_thing.sub[1]", "test_thing.vm"}))
			net := st.Get("test_thing.net")
			sub0 := st.Get("test_thing.sub[0]")
			vm := st.Get("test_thing.vm")
			Expect(sub0.Attributes).To(HaveKeyWithValue("ref", net.ID))
			Expect(sub0.Dependencies).To(Equal([]string{"test_thing.net"}))
			Expect(vm.Attributes).To(HaveKeyWithValue("ref", "arn:test:"+sub0.ID))
			Expect(vm.Attributes["items"]).To(HaveLen(2))
			Expect(st.Outputs).To(HaveKey("net_id"))
			Expect(st.Outputs["net_id"].Value).To(Equal(net.ID))
			Expect(st.Serial).To(BeEquivalentTo(5))

			Expect(f.recorder.OfType(observability.EventResourceCreated)).To(HaveLen(4))
			Expect(f.recorder.OfType(observability.EventPhaseCompleted)).NotTo(BeEmpty())
		})
	})

	Context("once applied", func() {
		BeforeEach(func() {
			_, err := f.converge(layeredStack, PlanOptions{})
			Expect(err).NotTo(HaveOccurred())
			f.provider.ResetCalls()
		})

		It("plans no changes when nothing changed", func() {
			e, err := f.engine(layeredStack)
			Expect(err).NotTo(HaveOccurred())
			p, err := e.Plan(ctx, PlanOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.HasChanges()).To(BeFalse())
			Expect(f.provider.CallsFor(providertest.OpRead)).To(HaveLen(4))
		})

		It("updates changed attributes in place", func() {
			p, err := f.converge(layeredStack, PlanOptions{}, "size=3")
			Expect(err).NotTo(HaveOccurred())
			Expect(actions(p)).To(Equal(map[string]plan.Action{
				"test_thing.net":    plan.NoOp,
				"test_thing.sub[0]": plan.Update,
				"test_thing.sub[1]": plan.Update,
				"test_thing.vm":     plan.NoOp,
			}))
			Expect(p.Change("test_thing.sub[0]").Changed).To(Equal([]string{"size"}))

			Expect(f.provider.CallsFor(providertest.OpUpdate)).To(HaveLen(2))
			Expect(f.provider.CallsFor(providertest.OpCreate)).To(BeEmpty())
			sub := f.state().Get("test_thing.sub[0]")
			obj, ok := f.provider.Object(sub.ID)
			Expect(ok).To(BeTrue())
			Expect(obj).To(HaveKeyWithValue("size", 3.0))
		})

		It("replaces an instance when a force_new attribute changes", func() {
			oldNet := f.state().Get("test_thing.net").ID

			p, err := f.converge(layeredStack, PlanOptions{}, "zone=z2")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Change("test_thing.net").Action).To(Equal(plan.Replace))
			Expect(p.Change("test_thing.net").ReplaceReasons).To(Equal([]string{"zone"}))
			Expect(p.Change("test_thing.sub[0]").Action).To(Equal(plan.Update))
			Expect(p.Change("test_thing.sub[0]").Unknown).To(Equal([]string{"ref"}))
			Expect(p.SummaryLine()).To(Equal("Plan: 1 to add, 2 to change, 1 to destroy."))

			var writes []string
			for _, c := range f.provider.Calls() {
				if c.Op != providertest.OpRead {
					writes = append(writes, c.Op+" "+c.Address)
				}
			}
			Expect(writes[0]).To(Equal("delete test_thing.net"), "destroy before create by default")
			Expect(writes[1]).To(Equal("create test_thing.net"))

			st := f.state()
			newNet := st.Get("test_thing.net").ID
			Expect(newNet).NotTo(Equal(oldNet))
			_, exists := f.provider.Object(oldNet)
			Expect(exists).To(BeFalse())
			Expect(st.Get("test_thing.sub[1]").Attributes).To(HaveKeyWithValue("ref", newNet))
			Expect(st.Outputs["net_id"].Value).To(Equal(newNet))
		})

		It("destroys in reverse dependency order", func() {
			p, err := f.converge(layeredStack, PlanOptions{Destroy: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SummaryLine()).To(Equal("Plan: 0 to add, 0 to change, 4 to destroy."))

			deleted := f.addressesFor(providertest.OpDelete)
			Expect(deleted).To(HaveLen(4))
			Expect(deleted[0]).To(Equal("test_thing.vm"))
			Expect(deleted[3]).To(Equal("test_thing.net"))
			Expect(f.provider.Objects()).To(BeZero())

			st := f.state()
			Expect(st.Resources).To(BeEmpty())
			Expect(st.Outputs).To(BeEmpty())
		})

		It("deletes instances removed by a lower count", func() {
			shrunk := `
resources:
  - type: test_thing
    name: net
    properties:
      name: net
      zone: z1
`
			p, err := f.converge(shrunk, PlanOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(actions(p)).To(Equal(map[string]plan.Action{
				"test_thing.net":    plan.NoOp,
				"test_thing.sub[0]": plan.Delete,
				"test_thing.sub[1]": plan.Delete,
				"test_thing.vm":     plan.Delete,
			}))
			deleted := f.addressesFor(providertest.OpDelete)
			Expect(indexOf(deleted, "test_thing.vm")).To(BeNumerically("<", indexOf(deleted, "test_thing.sub[0]")))
			Expect(f.state().Addresses()).To(Equal([]string{"test_thing.net"}))
		})
	})
})
