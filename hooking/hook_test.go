package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type site string

func (s site) Name() string { return string(s) }

type recordingHook struct {
	name  string
	calls *[]string
}

func (h *recordingHook) Func(ctx HookCtx) {
	*h.calls = append(*h.calls,
		h.name+":"+ctx.Site.Name()+":"+ctx.Pos.Name)
}

var _ = Describe("HookableBase", func() {
	var (
		base   *HookableBase
		calls  []string
		access *HookPos
		evict  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		calls = nil
		access = &HookPos{Name: "Access"}
		evict = &HookPos{Name: "Evict"}
	})

	It("should deliver every position to hooks attached without positions",
		func() {
			base.AcceptHook(&recordingHook{name: "a", calls: &calls})
			base.AcceptHook(&recordingHook{name: "b", calls: &calls})

			base.InvokeHook(HookCtx{Site: site("DM"), Pos: access})
			base.InvokeHook(HookCtx{Site: site("DM"), Pos: evict})

			Expect(base.NumHooks()).To(Equal(2))
			Expect(calls).To(Equal([]string{
				"a:DM:Access", "b:DM:Access",
				"a:DM:Evict", "b:DM:Evict",
			}))
		})

	It("should deliver only the subscribed positions", func() {
		base.AcceptHook(&recordingHook{name: "a", calls: &calls}, evict)

		base.InvokeHook(HookCtx{Site: site("DM"), Pos: access})
		base.InvokeHook(HookCtx{Site: site("DM"), Pos: evict})

		Expect(calls).To(Equal([]string{"a:DM:Evict"}))
	})

	It("should tell which positions are watched", func() {
		Expect(base.Watched(access)).To(BeFalse())

		base.AcceptHook(&recordingHook{name: "a", calls: &calls}, evict)

		Expect(base.Watched(access)).To(BeFalse())
		Expect(base.Watched(evict)).To(BeTrue())

		base.AcceptHook(&recordingHook{name: "b", calls: &calls})

		Expect(base.Watched(access)).To(BeTrue())
	})

	It("should panic when the same hook is attached twice", func() {
		hook := &recordingHook{name: "a", calls: &calls}
		base.AcceptHook(hook, access)

		Expect(func() { base.AcceptHook(hook, evict) }).To(Panic())
	})
})
