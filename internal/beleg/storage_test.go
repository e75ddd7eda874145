package beleg

import (
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "files"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips a file", func() {
		key, err := storage.Save("id-1_beleg.pdf", []byte("pdf"))
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("id-1_beleg.pdf"))

		data, err := storage.Get(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("pdf")))
	})

	It("returns ErrNotFound for missing files", func() {
		_, err := storage.Get("missing.pdf")
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	It("deletes files", func() {
		_, err := storage.Save("a.pdf", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.Delete("a.pdf")).To(Succeed())

		_, err = storage.Get("a.pdf")
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	DescribeTable("rejects keys outside the directory",
		func(key string) {
			_, err := storage.Save(key, []byte("x"))
			Expect(errors.Is(err, ErrInvalid)).To(BeTrue())
		},
		Entry("parent", ".."),
		Entry("traversal", "../escape.pdf"),
		Entry("nested", "a/b.pdf"),
		Entry("backslash", `a\b.pdf`),
		Entry("empty", ""),
	)
})
