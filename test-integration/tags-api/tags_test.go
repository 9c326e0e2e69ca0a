package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sotags/sotags-api/test-integration/tags-api/helpers"
)

var _ = Describe("Tags API", Label("api"), func() {
	var (
		tempDir      string
		upstream     *helpers.MockUpstream
		serverHelper *helpers.ServerTestHelper
	)

	start := func(opts helpers.ConfigOptions) {
		configFile := helpers.WriteConfigYAML(tempDir, upstream.BaseURL(), opts)

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	}

	stop := func() {
		if serverHelper != nil {
			Expect(serverHelper.StopServer()).To(Succeed())
			serverHelper = nil
		}
	}

	BeforeEach(func() {
		tempDir = createTempDir("tags-api-test-")
		upstream = helpers.NewMockUpstream(helpers.GenerateTags(250))
	})

	AfterEach(func() {
		stop()
		upstream.Close()
		cleanupTempDir(tempDir)
	})

	Context("Lazy fill", func() {
		BeforeEach(func() {
			start(helpers.ConfigOptions{MaxTags: 250})
		})

		It("fills the cache on the first listing and serves later listings from it", func() {
			Expect(upstream.Requests()).To(BeZero())

			page, total := serverHelper.ListTags("sortBy=count&direction=desc&page=1&pageSize=50")
			Expect(total).To(Equal("250"))
			Expect(page).To(HaveLen(50))
			Expect(page[0].Name).To(Equal("tag-000"))
			Expect(page[0].SharePercent).To(BeNumerically(">", 0))
			Expect(upstream.Requests()).To(Equal(3))

			page, _ = serverHelper.ListTags("sortBy=name&direction=asc&page=5&pageSize=50")
			Expect(page).To(HaveLen(50))
			Expect(page[49].Name).To(Equal("tag-249"))
			Expect(upstream.Requests()).To(Equal(3), "a full cache should not be refetched")
		})

		It("rejects invalid listing parameters", func() {
			for _, query := range []string{
				"sortBy=popularity&pageSize=10",
				"direction=sideways&pageSize=10",
				"page=0&pageSize=10",
				"page=6&pageSize=50",
				"pageSize=abc",
			} {
				resp, err := serverHelper.GetTags(query)
				Expect(err).NotTo(HaveOccurred())
				body, err := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				Expect(err).NotTo(HaveOccurred())

				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest), query)
				Expect(string(body)).To(ContainSubstring("Validation has FAILED!"), query)
			}
		})
	})

	Context("Refresh", func() {
		BeforeEach(func() {
			start(helpers.ConfigOptions{MaxTags: 250})
		})

		It("replaces the cached collection", func() {
			_, total := serverHelper.ListTags("pageSize=10")
			Expect(total).To(Equal("250"))

			upstream.SetTags(helpers.GenerateTags(120))
			resp, err := serverHelper.RefreshTags()
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body["message"]).To(Equal("Tags have been refreshed."))
			Expect(body["count"]).To(BeNumerically("==", 120))

			st := serverHelper.GetStatus()
			Expect(st["phase"]).To(Equal("Complete"))
			Expect(st["trigger"]).To(Equal("refresh"))
			Expect(st["tagCount"]).To(BeNumerically("==", 120))
		})
	})

	Context("Upstream failures", func() {
		BeforeEach(func() {
			upstream.FailWith(http.StatusTooManyRequests)
			start(helpers.ConfigOptions{MaxTags: 250})
		})

		It("reports a gateway error on listing and a server error on refresh", func() {
			resp, err := serverHelper.GetTags("pageSize=10")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			resp, err = serverHelper.RefreshTags()
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			st := serverHelper.GetStatus()
			Expect(st["phase"]).To(Equal("Failed"))
		})
	})

	DescribeTable("persistent storage survives a restart",
		func(storageType string) {
			opts := helpers.ConfigOptions{
				StorageType:      storageType,
				MaxTags:          250,
				RefreshOnStartup: true,
			}
			start(opts)

			Eventually(func() any {
				return serverHelper.GetStatus()["phase"]
			}, 10*time.Second, 100*time.Millisecond).Should(Equal("Complete"))
			stop()

			// only the stored tags can answer now
			upstream.FailWith(http.StatusInternalServerError)
			start(helpers.ConfigOptions{StorageType: storageType, MaxTags: 250})

			page, total := serverHelper.ListTags("sortBy=id&direction=asc&pageSize=25")
			Expect(total).To(Equal("250"))
			Expect(page).To(HaveLen(25))

			st := serverHelper.GetStatus()
			Expect(st["tagCount"]).To(BeNumerically("==", 250))
		},
		Entry("file", Label("file"), "file"),
		Entry("sqlite", Label("sqlite"), "sqlite"),
	)
})
