package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
	"github.com/emory-libraries/fedora-indexdata/test-integration/indexdata-api/helpers"
)

const (
	simpleCModel = "info:fedora/emory-control:SimpleCModel"
	imageCModel  = "info:fedora/emory-control:Image-1.0"
	solrURL      = "http://localhost:8983/solr/"
	deniedBody   = "Access to this web service was denied."
)

func readBody(resp *http.Response) string {
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(body)
}

var _ = Describe("Index Data API", Label("api"), func() {
	var (
		tempDir      string
		fedora       *helpers.FakeFedora
		opts         helpers.ConfigOptions
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("indexdata-test-")
		fedora = helpers.NewFakeFedora(
			helpers.FedoraObject{
				PID:           "demo:1",
				Label:         "A simple object",
				Owner:         "tester, archivist",
				State:         "A",
				ContentModels: []string{simpleCModel},
				DublinCore:    map[string][]string{"title": {"A simple object"}, "subject": {"maps", "atlanta"}},
			},
			helpers.FedoraObject{
				PID:           "demo:2",
				Label:         "An image",
				State:         "I",
				ContentModels: []string{imageCModel},
			},
		)
		opts = helpers.ConfigOptions{
			SolrURL:    solrURL,
			AllowedIPs: []string{"127.0.0.1"},
			FedoraURL:  fedora.BaseURL(),
			ObjectTypes: []config.ObjectTypeConfig{
				{Name: "SimpleObject", ContentModels: []string{simpleCModel}},
				{Name: "Untyped"},
				{Name: "Image", ContentModels: []string{imageCModel}},
			},
		}
	})

	JustBeforeEach(func() {
		configFile := helpers.WriteConfigYAML(tempDir, opts)
		serverHelper = helpers.NewServerTestHelper(ctx, configFile)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		fedora.Close()
		cleanupTempDir(tempDir)
	})

	Describe("discovery", func() {
		It("lists content model groups in registration order", func() {
			resp, err := serverHelper.Get("/indexdata/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var doc struct {
				ContentModels [][]string `json:"CONTENT_MODELS"`
				SolrURL       string     `json:"SOLR_URL"`
			}
			Expect(json.Unmarshal([]byte(readBody(resp)), &doc)).To(Succeed())
			Expect(doc.SolrURL).To(Equal(solrURL))
			Expect(doc.ContentModels).To(Equal([][]string{{simpleCModel}, {imageCModel}}))
		})

		Context("when the caller is not listed", func() {
			BeforeEach(func() {
				opts.AllowedIPs = []string{"0.13.23.134"}
			})

			It("denies with the html message", func() {
				resp, err := serverHelper.Get("/indexdata/")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
				Expect(resp.Header.Get("Content-Type")).To(Equal("text/html"))
				Expect(readBody(resp)).To(Equal(deniedBody))
			})

			It("applies an allow-list change without a restart", func() {
				opts.AllowedIPs = nil
				opts.AllowAny = true
				helpers.WriteConfigYAML(tempDir, opts)

				Eventually(func() int {
					resp, err := serverHelper.Get("/indexdata/")
					if err != nil {
						return 0
					}
					_ = readBody(resp)
					return resp.StatusCode
				}, 10*time.Second, 100*time.Millisecond).Should(Equal(http.StatusOK))
			})
		})

		Context("when the search index URL is missing", func() {
			BeforeEach(func() {
				opts.SolrURL = ""
			})

			It("reports a configuration error", func() {
				resp, err := serverHelper.Get("/indexdata/")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(readBody(resp)).To(ContainSubstring("server configuration error"))
			})
		})
	})

	Describe("index data", func() {
		It("serves the projected fields with and without a trailing slash", func() {
			for _, path := range []string{"/indexdata/demo:1/", "/indexdata/demo:1"} {
				resp, err := serverHelper.Get(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK), path)

				var fields map[string]any
				Expect(json.Unmarshal([]byte(readBody(resp)), &fields)).To(Succeed())
				Expect(fields).To(HaveKeyWithValue("pid", "demo:1"))
				Expect(fields).To(HaveKeyWithValue("label", "A simple object"))
				Expect(fields).To(HaveKeyWithValue("owner", ConsistOf("tester", "archivist")))
				Expect(fields).To(HaveKeyWithValue("subject", ConsistOf("maps", "atlanta")))
				Expect(fields).To(HaveKeyWithValue("content_model", ConsistOf(simpleCModel)))
			}
		})

		It("answers 404 for objects the repository does not have", func() {
			resp, err := serverHelper.Get("/indexdata/bogus:testpid/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(readBody(resp)).To(ContainSubstring("bogus:testpid"))
		})

		It("answers 404 once the repository goes away", func() {
			fedora.Close()

			resp, err := serverHelper.Get("/indexdata/demo:1/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("is not guarded by default", func() {
			opts.AllowedIPs = []string{"0.13.23.134"}
			helpers.WriteConfigYAML(tempDir, opts)

			resp, err := serverHelper.Get("/indexdata/demo:2/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_ = readBody(resp)
		})

		Context("when index data is protected", func() {
			BeforeEach(func() {
				opts.ProtectIndexData = true
				opts.AllowedIPs = []string{"0.13.23.134"}
			})

			It("denies unlisted callers", func() {
				resp, err := serverHelper.Get("/indexdata/demo:1/")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
				Expect(readBody(resp)).To(Equal(deniedBody))
				Expect(fedora.Requests()).To(BeZero())
			})
		})
	})

	Describe("operations endpoints", func() {
		It("reports ready when the repository answers", func() {
			resp, err := serverHelper.Get("/readiness")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring("ready"))
		})

		It("reports not ready when the repository is down", func() {
			fedora.Close()

			resp, err := serverHelper.Get("/readiness")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			_ = readBody(resp)
		})

		It("reports the build version", func() {
			resp, err := serverHelper.Get("/version")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring(`"version"`))
		})
	})
})
