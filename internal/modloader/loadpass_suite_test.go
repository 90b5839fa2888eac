// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package modloader_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/towgame/tow/internal/modloader"
	modlua "github.com/towgame/tow/internal/modloader/lua"
	"github.com/towgame/tow/pkg/event"
)

func TestLoadPass(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mod Load Pass Suite")
}

const singleEntry = `
mod.name("counter")
mod.init(function() mod.log("info", "counter booting") end)
mod.entry(function()
	return { attach = function(self) mod.log("info", "counter attached") end }
end)
mod.listen("ping", function(ev) mod.log("info", "pong from counter") end)
`

const twoEntries = `
mod.name("greedy")
mod.entry(function() return {} end)
mod.entry(function() return {} end)
`

const library = `
mod.name("helpers")
mod.listen("ping", "monitor", function(ev) end)
`

var _ = Describe("a load pass over Lua artifacts", func() {
	var (
		dir    string
		host   *testHost
		loader *modloader.Loader
	)

	write := func(name, code string) {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(code), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		host = newTestHost()
		loader = modloader.New(dir, host,
			modloader.WithOpeners(modlua.NewOpener()),
			modloader.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		DeferCleanup(func() {
			Expect(loader.Close()).To(Succeed())
		})
	})

	Context("with one valid single-entry artifact", func() {
		BeforeEach(func() {
			write("counter.lua", singleEntry)
		})

		It("attaches exactly one entry and records no failures", func() {
			report, err := loader.LoadAll(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Discovered).To(Equal(1))
			Expect(report.Attached).To(Equal(1))
			Expect(report.Failures).To(BeEmpty())
			Expect(loader.Entries()).To(HaveLen(1))
		})

		It("exposes the unit's listeners to the scanner", func() {
			_, err := loader.LoadAll(context.Background())
			Expect(err).NotTo(HaveOccurred())

			accepted, rejected := event.Scan(loader.Listeners()...)

			Expect(rejected).To(BeEmpty())
			Expect(accepted).To(HaveLen(1))
			Expect(accepted[0].Name).To(Equal("counter:ping#1"))
		})

		It("does not load the same artifact twice", func() {
			_, err := loader.LoadAll(context.Background())
			Expect(err).NotTo(HaveOccurred())

			again, err := loader.LoadAll(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(again.Attached).To(BeZero())
			Expect(loader.Units()).To(HaveLen(1))
		})
	})

	Context("with a too-many-entries artifact beside a valid one", func() {
		BeforeEach(func() {
			write("counter.lua", singleEntry)
			write("greedy.lua", twoEntries)
		})

		It("rejects only the offending unit", func() {
			report, err := loader.LoadAll(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Attached).To(Equal(1))
			Expect(report.Failures).To(HaveLen(1))

			failure := report.Failures[0]
			Expect(failure.Artifact).To(Equal("greedy.lua"))
			Expect(failure.Stage).To(Equal(modloader.StageResolve))
			Expect(errors.Is(failure.Err, modloader.ErrTooManyEntryPoints)).To(BeTrue())
		})

		It("closes the rejected unit's context", func() {
			_, err := loader.LoadAll(context.Background())
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, 1)
			for _, u := range loader.Units() {
				names = append(names, u.Name)
			}
			Expect(names).To(ConsistOf("counter"))
		})
	})

	Context("with a library artifact and a broken script", func() {
		BeforeEach(func() {
			write("helpers.lua", library)
			write("broken.lua", `mod.name(`)
			write("notes.txt", "not a mod")
		})

		It("keeps the library loaded without an entry", func() {
			report, err := loader.LoadAll(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Discovered).To(Equal(2))
			Expect(report.Loaded).To(Equal(1))
			Expect(report.Attached).To(BeZero())

			units := loader.Units()
			Expect(units).To(HaveLen(1))
			Expect(units[0].State).To(Equal(modloader.StateLoaded))
			Expect(units[0].HasEntry).To(BeFalse())
		})

		It("reports the broken script as a load failure", func() {
			report, err := loader.LoadAll(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failures).To(HaveLen(1))
			Expect(report.Failures[0].Artifact).To(Equal("broken.lua"))
			Expect(errors.Is(report.Failures[0].Err, modloader.ErrLoadFailed)).To(BeTrue())
		})
	})
})
